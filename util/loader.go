// Package util - Loading of image files from disk.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
}

// IsImagePath reports whether the file extension is one of the decodable formats.
func IsImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
		return true
	}
	return false
}

// LoadDirectoryImageFiles reads all image files from a directory, sorted by name.
// Subdirectories and files with other extensions are skipped.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading directory %q", dir)
	}

	images := make([]ImageFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsImagePath(entry.Name()) {
			continue
		}
		file, err := LoadImageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		images = append(images, file)
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Path < images[j].Path
	})

	return images, nil
}

// LoadImageFile reads one file.
func LoadImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "error reading image %q", path)
	}
	return ImageFile{Path: path, Data: data}, nil
}

// LoadImageFiles expands a mix of files and directories into image files, keeping
// argument order. Explicit files are loaded whatever their extension.
//
// Arguments:
// - paths: Files or directories.
//
// Returns:
// - []ImageFile: The loaded files.
// - error: Error if any path cannot be read.
func LoadImageFiles(paths ...string) ([]ImageFile, error) {
	var images []ImageFile
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading %q", path)
		}
		if info.IsDir() {
			files, err := LoadDirectoryImageFiles(path)
			if err != nil {
				return nil, err
			}
			images = append(images, files...)
			continue
		}
		file, err := LoadImageFile(path)
		if err != nil {
			return nil, err
		}
		images = append(images, file)
	}
	return images, nil
}
