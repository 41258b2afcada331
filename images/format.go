package images

import "strings"

// ImageFormat represents supported image formats
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatUnknown lets the decoder sniff the format from the data.
	FormatUnknown ImageFormat = ""
)

// FormatFromExtension maps a file extension (with or without the dot) to an ImageFormat.
//
// Arguments:
//   - ext: The file extension, e.g. ".jpg".
//
// Returns:
//   - ImageFormat: The matching format, FormatUnknown when not recognised.
func FormatFromExtension(ext string) ImageFormat {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}
