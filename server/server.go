// Package server - HTTP API for tile detection.
package server

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-mahjong/detector"
	"github.com/nvr-ai/go-mahjong/images"
	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/profiler"
	"github.com/nvr-ai/go-mahjong/render"
)

const (
	// RequestIDHeader carries the request id in responses.
	RequestIDHeader = "X-Request-ID"
	// DefaultMaxUploadBytes bounds the size of an uploaded photo.
	DefaultMaxUploadBytes = 20 << 20

	requestIDKey = "request_id"
	// multipartSlack covers the multipart boundaries and part headers around the photo.
	multipartSlack = 8 << 10
)

// DetectResponse is the JSON body of POST /v1/detect.
type DetectResponse struct {
	ID         string                   `json:"id"`
	Tiles      []string                 `json:"tiles"`
	Detections []detector.TileDetection `json:"detections"`
}

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Server serves the detection API.
type Server struct {
	det       *detector.Detector
	log       logrus.FieldLogger
	router    *gin.Engine
	maxUpload int64
	prof      *profiler.RuntimeProfiler
}

// Option customizes a Server.
type Option func(*Server)

// WithMaxUploadBytes bounds the size of an uploaded photo.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithProfiler records the duration of every detection request.
func WithProfiler(p *profiler.RuntimeProfiler) Option {
	return func(s *Server) {
		s.prof = p
	}
}

// New creates the API server.
//
// Arguments:
//   - det: The detector answering requests.
//   - log: The request logger.
//   - opts: Optional limits and profiler.
//
// Returns:
//   - *Server: The server, ready to Run or to mount via Handler.
func New(det *detector.Detector, log logrus.FieldLogger, opts ...Option) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{det: det, log: log, maxUpload: DefaultMaxUploadBytes}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.accessLog())
	router.GET("/healthz", s.health)
	router.GET("/v1/classes", s.classes)
	router.POST("/v1/detect", s.detect)
	s.router = router

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return errors.Wrap(err, "shutdown failed")
	}
	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			u, err := uuid.NewV4()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create request id"})
				return
			}
			id = u.String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"id":      c.GetString(requestIDKey),
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("request")
	}
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if metrics, ok := s.det.Metrics(); ok {
		body["metrics"] = metrics
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) classes(c *gin.Context) {
	catalog := s.det.Classes()
	c.JSON(http.StatusOK, gin.H{
		"style":   catalog.Style,
		"classes": catalog.Classes,
	})
}

func (s *Server) detect(c *gin.Context) {
	id := c.GetString(requestIDKey)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+multipartSlack)
	header, err := c.FormFile("image")
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		s.fail(c, http.StatusRequestEntityTooLarge, errors.Errorf("image exceeds %d bytes", s.maxUpload))
		return
	case err != nil:
		s.fail(c, http.StatusBadRequest, errors.New("image is missing"))
		return
	case header.Size > s.maxUpload:
		s.fail(c, http.StatusRequestEntityTooLarge, errors.Errorf("image exceeds %d bytes", s.maxUpload))
		return
	}

	file, err := header.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, errors.Wrap(err, "failed to open upload"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload))
	if err != nil {
		s.fail(c, http.StatusBadRequest, errors.Wrap(err, "failed to read upload"))
		return
	}

	// The client's file name is not trusted; the format is sniffed from the data.
	upload := &images.Image{Format: images.FormatUnknown, Data: data}
	img, err := upload.Decode()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	dets, err := s.det.Detect(c.Request.Context(), img)
	if s.prof != nil {
		s.prof.RecordOperation("detect", time.Since(start))
	}
	if err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	labelled, err := s.det.Label(dets)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	if c.Query("annotate") == "true" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, render.Detections(img, dets, s.det.Classes())); err != nil {
			s.fail(c, http.StatusInternalServerError, errors.Wrap(err, "failed to encode annotated image"))
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
		return
	}

	tiles := make([]string, len(labelled))
	for i, det := range labelled {
		tiles[i] = det.Name
	}
	c.JSON(http.StatusOK, DetectResponse{ID: id, Tiles: tiles, Detections: labelled})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	id := c.GetString(requestIDKey)
	entry := s.log.WithError(err).WithField("id", id)
	if status >= http.StatusInternalServerError {
		entry.Error("detect failed")
	} else {
		entry.Warn("bad request")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{ID: id, Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, preprocess.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, inference.ErrAcquireTimeout), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
