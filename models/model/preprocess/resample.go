package preprocess

import (
	"image"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Resampler scales an image to an exact size.
type Resampler interface {
	Resample(img image.Image, width, height int) image.Image
}

// BilinearResampler resizes with nfnt/resize bilinear interpolation.
type BilinearResampler struct{}

// Resample implements Resampler.
func (BilinearResampler) Resample(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// LanczosResampler resizes with a Lanczos3 kernel, sharper but slower than bilinear.
type LanczosResampler struct{}

// Resample implements Resampler.
func (LanczosResampler) Resample(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// ImagingResampler resizes with a disintegration/imaging filter.
type ImagingResampler struct {
	Filter imaging.ResampleFilter
}

// Resample implements Resampler.
func (r ImagingResampler) Resample(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, r.Filter)
}

var (
	resamplersMu sync.RWMutex
	resamplers   = map[string]Resampler{
		"bilinear":        BilinearResampler{},
		"lanczos":         LanczosResampler{},
		"imaging-linear":  ImagingResampler{Filter: imaging.Linear},
		"imaging-catmull": ImagingResampler{Filter: imaging.CatmullRom},
	}
)

// RegisterResampler makes a resampler selectable by name from configuration.
func RegisterResampler(name string, r Resampler) {
	resamplersMu.Lock()
	defer resamplersMu.Unlock()
	resamplers[name] = r
}

// ResamplerByName returns a registered resampler. The empty name selects bilinear.
//
// Arguments:
//   - name: The registered resampler name.
//
// Returns:
//   - Resampler: The resampler.
//   - error: An error listing the known names if name is not registered.
func ResamplerByName(name string) (Resampler, error) {
	if name == "" {
		name = "bilinear"
	}

	resamplersMu.RLock()
	defer resamplersMu.RUnlock()

	r, ok := resamplers[name]
	if !ok {
		known := make([]string, 0, len(resamplers))
		for k := range resamplers {
			known = append(known, k)
		}
		sort.Strings(known)
		return nil, errors.Errorf("unknown resampler %q (known: %v)", name, known)
	}
	return r, nil
}
