// Package render - Drawing of tile detections onto photos.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/nvr-ai/go-mahjong/models"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// Thickness is the box outline width in pixels.
const Thickness = 2

// Palette returns n colours spread evenly around the hue circle.
//
// Arguments:
//   - n: The number of colours, usually the catalog size.
//
// Returns:
//   - []color.RGBA: Opaque colours, one per class index.
func Palette(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		c := colorful.Hsv(360*float64(i)/float64(n), 0.8, 0.95)
		r, g, b := c.RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// Detections draws every detection as an outlined box with a "name confidence" label.
//
// Arguments:
//   - img: The photo the detections were made on. It is not modified.
//   - dets: Detections in photo pixel coordinates.
//   - catalog: Maps class ids to names and palette slots. Unknown ids are labelled "#id".
//
// Returns:
//   - *image.RGBA: A copy of the photo with the annotations.
//
// @example
//
//	annotated := render.Detections(img, dets, models.MahjongTiles)
//	_ = png.Encode(w, annotated)
func Detections(img image.Image, dets []postprocess.Detection, catalog *models.OutputClassSet) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	n := 1
	if catalog != nil && catalog.Len() > 0 {
		n = catalog.Len()
	}
	palette := Palette(n)

	for _, det := range dets {
		c := palette[((det.ClassID%n)+n)%n]
		box := toRectangle(det).Intersect(dst.Bounds())
		if box.Empty() {
			continue
		}
		outline(dst, box, c)
		label(dst, box, fmt.Sprintf("%s %.2f", className(catalog, det.ClassID), det.Confidence), c)
	}

	return dst
}

func className(catalog *models.OutputClassSet, id int) string {
	if catalog != nil {
		if name, err := catalog.Name(id); err == nil {
			return name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func toRectangle(det postprocess.Detection) image.Rectangle {
	return image.Rect(
		int(math32.Floor(det.X1)), int(math32.Floor(det.Y1)),
		int(math32.Ceil(det.X2)), int(math32.Ceil(det.Y2)),
	)
}

func outline(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	src := image.NewUniform(c)
	t := Thickness
	if r.Dx() < 2*t || r.Dy() < 2*t {
		draw.Draw(dst, r, src, image.Point{}, draw.Src)
		return
	}
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

// label draws text on a filled tag above the box, or inside it when the box touches the top edge.
func label(dst *image.RGBA, box image.Rectangle, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Height + 2

	tag := image.Rect(box.Min.X, box.Min.Y-height, box.Min.X+width, box.Min.Y)
	if tag.Min.Y < dst.Bounds().Min.Y {
		tag = tag.Add(image.Pt(0, height))
	}
	tag = tag.Intersect(dst.Bounds())
	if tag.Empty() {
		return
	}
	draw.Draw(dst, tag, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor(bg)),
		Face: face,
		Dot:  fixed.P(tag.Min.X+2, tag.Min.Y+face.Ascent+1),
	}
	d.DrawString(text)
}

// textColor picks black or white, whichever reads better on bg.
func textColor(bg color.RGBA) color.Color {
	c, _ := colorful.MakeColor(bg)
	if l, _, _ := c.Lab(); l > 0.6 {
		return color.Black
	}
	return color.White
}
