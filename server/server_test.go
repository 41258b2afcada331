package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mahjong/detector"
	"github.com/nvr-ai/go-mahjong/inference"
	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
	"github.com/nvr-ai/go-mahjong/profiler"
)

// tileBackend reports a haku left of a 5p in a 64 input, for a 128x72 photo.
type tileBackend struct {
	err error
}

func (b *tileBackend) Run(ctx context.Context, input *preprocess.Tensor) (*postprocess.Output, error) {
	if b.err != nil {
		return nil, b.err
	}
	const rows, n = 38, 2
	data := make([]float32, rows*n)
	data[0*n+0], data[1*n+0], data[2*n+0], data[3*n+0] = 40, 32, 4, 6
	data[(4+13)*n+0] = 0.7
	data[0*n+1], data[1*n+1], data[2*n+1], data[3*n+1] = 20, 32, 4, 6
	data[(4+28)*n+1] = 0.95
	return postprocess.NewOutput(data, 1, rows, n)
}

func (b *tileBackend) InputSpec() inference.InputSpec {
	return inference.InputSpec{Size: 64, NumClasses: 34}
}

func (b *tileBackend) Close() error { return nil }

func newTestServer(t *testing.T, backend inference.Backend, opts ...Option) (*httptest.Server, *resty.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, _ := test.NewNullLogger()
	det, err := detector.NewBuilder().WithBackend(backend).WithLogger(log).Build()
	require.NoError(t, err)

	ts := httptest.NewServer(New(det, log, opts...).Handler())
	t.Cleanup(ts.Close)

	return ts, resty.New().SetBaseURL(ts.URL)
}

func tablePhoto() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 128, 72))
	for y := 0; y < 72; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{R: uint8(2 * x), G: uint8(3 * y), B: 40, A: 255})
		}
	}
	return img
}

func photoJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, tablePhoto(), nil))
	return buf.Bytes()
}

func photoPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, tablePhoto()))
	return buf.Bytes()
}

func TestHealthz(t *testing.T) {
	_, client := newTestServer(t, &tileBackend{})

	resp, err := client.R().Get("/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), `"status":"ok"`)
	assert.NotEmpty(t, resp.Header().Get(RequestIDHeader))
}

func TestClasses(t *testing.T) {
	_, client := newTestServer(t, &tileBackend{})

	var body struct {
		Style   string `json:"style"`
		Classes []struct {
			Index int    `json:"index"`
			Name  string `json:"name"`
		} `json:"classes"`
	}
	resp, err := client.R().SetResult(&body).Get("/v1/classes")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "mahjong", body.Style)
	require.Len(t, body.Classes, 34)
	assert.Equal(t, "1m", body.Classes[0].Name)
	assert.Equal(t, "tou", body.Classes[33].Name)
}

func TestDetect(t *testing.T) {
	_, client := newTestServer(t, &tileBackend{})

	var body DetectResponse
	resp, err := client.R().
		SetHeader(RequestIDHeader, "req-42").
		SetFileReader("image", "table.jpg", bytes.NewReader(photoJPEG(t))).
		SetResult(&body).
		Post("/v1/detect")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	assert.Equal(t, "req-42", body.ID)
	assert.Equal(t, "req-42", resp.Header().Get(RequestIDHeader))
	assert.Equal(t, []string{"haku", "5p"}, body.Tiles)
	require.Len(t, body.Detections, 2)
	assert.Equal(t, 28, body.Detections[0].ClassID)
	assert.InDelta(t, 36, body.Detections[0].X1, 1e-3)
	assert.InDelta(t, 30, body.Detections[0].Y1, 1e-3)
}

func TestDetectSniffsFormat(t *testing.T) {
	_, client := newTestServer(t, &tileBackend{})

	var body DetectResponse
	resp, err := client.R().
		SetFileReader("image", "IMG_0001.jpg", bytes.NewReader(photoPNG(t))).
		SetResult(&body).
		Post("/v1/detect")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	assert.Equal(t, []string{"haku", "5p"}, body.Tiles)
}

func TestDetectAnnotated(t *testing.T) {
	_, client := newTestServer(t, &tileBackend{})

	resp, err := client.R().
		SetQueryParam("annotate", "true").
		SetFileReader("image", "table.jpg", bytes.NewReader(photoJPEG(t))).
		Post("/v1/detect")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(resp.Body()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 128, 72), img.Bounds())
}

func TestDetectErrors(t *testing.T) {
	tests := []struct {
		name    string
		backend *tileBackend
		opts    []Option
		file    []byte
		status  int
	}{
		{name: "missing image", backend: &tileBackend{}, status: http.StatusBadRequest},
		{name: "undecodable image", backend: &tileBackend{}, file: []byte("definitely not a photo"), status: http.StatusBadRequest},
		{name: "backend failure", backend: &tileBackend{err: errors.New("session crashed")}, file: photoJPEG(t), status: http.StatusInternalServerError},
		{name: "pool exhausted", backend: &tileBackend{err: inference.ErrAcquireTimeout}, file: photoJPEG(t), status: http.StatusServiceUnavailable},
		{name: "body over limit", backend: &tileBackend{}, opts: []Option{WithMaxUploadBytes(1024)}, file: make([]byte, 64<<10), status: http.StatusRequestEntityTooLarge},
		{name: "file over limit", backend: &tileBackend{}, opts: []Option{WithMaxUploadBytes(1024)}, file: make([]byte, 2048), status: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, tt.backend, tt.opts...)

			req := client.R().SetResult(&DetectResponse{}).SetError(&ErrorResponse{})
			if tt.file != nil {
				req.SetFileReader("image", "photo.jpg", bytes.NewReader(tt.file))
			} else {
				req.SetFormData(map[string]string{"other": "field"})
			}

			resp, err := req.Post("/v1/detect")
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode())

			body, ok := resp.Error().(*ErrorResponse)
			require.True(t, ok)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, resp.Header().Get(RequestIDHeader), body.ID)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(errors.Wrap(preprocess.ErrInvalidInput, "empty")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.Wrap(postprocess.ErrShapeMismatch, "rows")))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.DeadlineExceeded))
}

func TestDetectRecordsProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()
	det, err := detector.NewBuilder().WithBackend(&tileBackend{}).WithLogger(log).Build()
	require.NoError(t, err)

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: log})
	ts := httptest.NewServer(New(det, log, WithProfiler(prof)).Handler())
	defer ts.Close()

	resp, err := resty.New().R().
		SetFileReader("image", "table.jpg", bytes.NewReader(photoJPEG(t))).
		Post(ts.URL + "/v1/detect")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	assert.Equal(t, int64(1), prof.GetCurrentStats().Operations["detect"].Count)
}
