// Package util - Helpers for loading photos from disk.
package util

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mahjong/images"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Image holds the encoded bytes and the format guessed from the extension.
	Image images.Image
}

// LoadImageFile reads one photo.
//
// Arguments:
//   - path: The photo path.
//
// Returns:
//   - ImageFile: The encoded photo.
//   - error: Error if reading fails.
func LoadImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return ImageFile{
		Path:  path,
		Image: images.Image{Format: images.FormatFromExtension(filepath.Ext(path)), Data: data},
	}, nil
}

// LoadDirectoryImageFiles reads all photos from a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The JPEG, PNG and WebP files of dir, sorted by name. Subdirectories are skipped.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if images.FormatFromExtension(filepath.Ext(entry.Name())) == images.FormatUnknown {
			continue
		}

		file, err := LoadImageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}
