package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolution_GetMegaPixels(t *testing.T) {
	testCases := []struct {
		name     string
		res      Resolution
		expected float64
	}{
		{name: "Full HD 1080p", res: mustResolution(t, ResolutionTypeFHD1080p), expected: 2.07},
		{name: "12MP", res: mustResolution(t, ResolutionType12MP), expected: 12.19},
		{name: "Zero Width", res: Resolution{Pixels: Pixels{Width: 0, Height: 1080}}, expected: 0.0},
		{name: "Negative Height", res: Resolution{Pixels: Pixels{Width: 1920, Height: -1}}, expected: 0.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, tc.res.GetMegaPixels(), 1e-9)
		})
	}
}

func TestResolution_String(t *testing.T) {
	assert.Equal(t, "HD 720p (1280x720, 0.92MP)", mustResolution(t, ResolutionTypeHD720p).String())
}

func TestPhotoResolutionsOrdered(t *testing.T) {
	for i := 1; i < len(PhotoResolutions); i++ {
		assert.Less(t, PhotoResolutions[i-1].GetMegaPixels(), PhotoResolutions[i].GetMegaPixels())
	}
}

func TestGetHighestResolutionUnderDimensions(t *testing.T) {
	res, ok := GetHighestResolutionUnderDimensions(2000, 1200)
	assert.True(t, ok)
	assert.Equal(t, ResolutionTypeFHD1080p, res.Name)

	_, ok = GetHighestResolutionUnderDimensions(320, 240)
	assert.False(t, ok)

	_, ok = GetResolutionByType("8K")
	assert.False(t, ok)
}

func mustResolution(t *testing.T, name ResolutionType) Resolution {
	t.Helper()
	r, ok := GetResolutionByType(name)
	if !ok {
		t.Fatalf("resolution %q not defined", name)
	}
	return r
}
