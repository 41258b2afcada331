package images

import (
	"fmt"
	"math"
)

// AspectRatio represents an aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Aspect ratios of phone and webcam photos.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio11  AspectRatio = "1:1"
)

// ResolutionType is the common name of a photo resolution.
type ResolutionType string

// Photo resolutions a table photo is typically taken at.
const (
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionType3MP43    ResolutionType = "3MP (4:3)"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
	ResolutionType12MP     ResolutionType = "12MP (4:3)"
	ResolutionTypeSquare   ResolutionType = "Square 1080"
)

// Pixels describes the exact dimensions of a resolution.
type Pixels struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Resolution describes a named photo size.
type Resolution struct {
	Name        ResolutionType `json:"name"`
	AspectRatio AspectRatio    `json:"aspectRatio"`
	Pixels      Pixels         `json:"pixels"`
}

// GetMegaPixels returns the megapixel count rounded to two decimal places (e.g., 2.07 for 1080p).
func (r Resolution) GetMegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.GetMegaPixels())
}

// PhotoResolutions lists the supported photo sizes from smallest to largest.
var PhotoResolutions = []Resolution{
	{Name: ResolutionTypeVGA, AspectRatio: AspectRatio43, Pixels: Pixels{Width: 640, Height: 480}},
	{Name: ResolutionTypeHD720p, AspectRatio: AspectRatio169, Pixels: Pixels{Width: 1280, Height: 720}},
	{Name: ResolutionTypeSquare, AspectRatio: AspectRatio11, Pixels: Pixels{Width: 1080, Height: 1080}},
	{Name: ResolutionTypeFHD1080p, AspectRatio: AspectRatio169, Pixels: Pixels{Width: 1920, Height: 1080}},
	{Name: ResolutionType3MP43, AspectRatio: AspectRatio43, Pixels: Pixels{Width: 2048, Height: 1536}},
	{Name: ResolutionType4KUHD, AspectRatio: AspectRatio169, Pixels: Pixels{Width: 3840, Height: 2160}},
	{Name: ResolutionType12MP, AspectRatio: AspectRatio43, Pixels: Pixels{Width: 4032, Height: 3024}},
}

// GetResolutionByType retrieves a resolution by its name.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	for _, r := range PhotoResolutions {
		if r.Name == t {
			return r, true
		}
	}
	return Resolution{}, false
}

// GetHighestResolutionUnderDimensions retrieves the largest resolution that fits in the given size.
//
// Arguments:
//   - width: The maximum possible width of the image.
//   - height: The maximum possible height of the image.
//
// Returns:
//   - Resolution: The largest fitting resolution.
//   - bool: True if a resolution was found, otherwise false.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range PhotoResolutions {
		if res.Pixels.Width <= width && res.Pixels.Height <= height {
			if !found || res.GetMegaPixels() > highest.GetMegaPixels() {
				highest = res
				found = true
			}
		}
	}
	return highest, found
}
