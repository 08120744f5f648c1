// Package sorter files copies of an analyzed image into one folder per category.
package sorter

import (
	"fmt"
	"path/filepath"

	"github.com/menta2k/vision-analyzer/internal/utils"
	"github.com/menta2k/vision-analyzer/pkg/apperror"
)

// Sorter copies images into category folders under a base directory
type Sorter struct {
	baseDir string
}

// New creates a Sorter rooted at baseDir; an empty baseDir means the working directory
func New(baseDir string) *Sorter {
	if baseDir == "" {
		baseDir = "."
	}
	return &Sorter{baseDir: baseDir}
}

// CategoryDir returns the folder used for category
func (s *Sorter) CategoryDir(category string) string {
	return filepath.Join(s.baseDir, utils.SanitizeFilename(category))
}

// AddImageToFolder places a copy of imagePath in the category folder,
// creating the folder when absent and overwriting an existing copy.
func (s *Sorter) AddImageToFolder(imagePath, category string) error {
	name := utils.SanitizeFilename(category)
	if name == "" {
		return apperror.IO("sort image", fmt.Errorf("category %q has no usable folder name", category))
	}

	dir := filepath.Join(s.baseDir, name)
	if err := utils.EnsureDir(dir); err != nil {
		return apperror.IO("create category folder", err)
	}

	dst := filepath.Join(dir, filepath.Base(imagePath))
	if err := utils.CopyFile(imagePath, dst); err != nil {
		return apperror.IO("copy image to category folder", err)
	}
	return nil
}
