// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workspace owns the on-disk layout of a pipeline run: the
// sanitized-title naming scheme, canonical document/image/output paths,
// relocation of a document when its title becomes known, and the
// per-title lock that serializes runs sharing a title.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	documentsDir = "documents"
	outputsDir   = "outputs"
	imagesDir    = "extracted_images"

	// MaxNameLen bounds a sanitized title in runes.
	MaxNameLen = 150

	fallbackName = "paper"
)

// unsafeChars matches a path-unsafe character together with the spaces
// around it, so "A/B: C" becomes "A_B_C".
var unsafeChars = regexp.MustCompile(`\s*[/:?\\]\s*`)

// Sanitize maps a title to a path-safe directory name. The mapping is pure:
// identical titles always produce identical names.
func Sanitize(title string) string {
	s := strings.TrimSpace(unsafeChars.ReplaceAllString(title, "_"))
	if r := []rune(s); len(r) > MaxNameLen {
		s = strings.TrimSpace(string(r[:MaxNameLen]))
	}
	if s == "" {
		return fallbackName
	}
	return s
}

// Layout resolves canonical paths under a working root.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	if root == "" {
		root = "."
	}
	return Layout{Root: root}
}

// DocumentDir returns {root}/documents/{s}.
func (l Layout) DocumentDir(title string) string {
	return filepath.Join(l.Root, documentsDir, Sanitize(title))
}

// DocumentPath returns {root}/documents/{s}/{s}.pdf.
func (l Layout) DocumentPath(title string) string {
	s := Sanitize(title)
	return filepath.Join(l.Root, documentsDir, s, s+".pdf")
}

// ImagesDir returns {root}/documents/{s}/extracted_images.
func (l Layout) ImagesDir(title string) string {
	return filepath.Join(l.DocumentDir(title), imagesDir)
}

// OutputPath returns {root}/outputs/{s}.md.
func (l Layout) OutputPath(title string) string {
	return filepath.Join(l.Root, outputsDir, Sanitize(title)+".md")
}

// OutputsDir returns {root}/outputs.
func (l Layout) OutputsDir() string {
	return filepath.Join(l.Root, outputsDir)
}

// RelativeImagesDir is the image directory as referenced from a digest in
// outputs/. It always uses forward slashes.
func RelativeImagesDir(title string) string {
	return path.Join("..", documentsDir, Sanitize(title), imagesDir)
}

// ResolveImage maps an image reference found in a digest written to
// OutputPath back to a local file path. Absolute URLs return ok=false.
func (l Layout) ResolveImage(ref string) (string, bool) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	if filepath.IsAbs(ref) {
		return ref, true
	}
	return filepath.Join(l.OutputsDir(), filepath.FromSlash(ref)), true
}

// Prepare creates the document, image, and output directories for title.
func (l Layout) Prepare(title string) error {
	for _, dir := range []string{l.ImagesDir(title), l.OutputsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// ErrDestinationExists is returned by Relocate when the canonical location
// for the new title is already occupied by another document.
var ErrDestinationExists = errors.New("destination already exists")

// Relocate moves the document at docPath, and the extracted images next
// to it, into the canonical location for newTitle. It returns the new
// document path. Moving onto the current path is a no-op.
func (l Layout) Relocate(docPath, newTitle string) (string, error) {
	dest := l.DocumentPath(newTitle)
	if filepath.Clean(docPath) == filepath.Clean(dest) {
		return dest, nil
	}
	if _, err := os.Stat(docPath); err != nil {
		return docPath, fmt.Errorf("stat %s: %w", docPath, err)
	}
	if _, err := os.Stat(dest); err == nil {
		return docPath, fmt.Errorf("relocating to %s: %w", dest, ErrDestinationExists)
	}

	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return docPath, fmt.Errorf("creating directory %s: %w", destDir, err)
	}
	if err := os.Rename(docPath, dest); err != nil {
		return docPath, fmt.Errorf("renaming %s: %w", docPath, err)
	}

	srcDir := filepath.Dir(docPath)
	srcImages := filepath.Join(srcDir, imagesDir)
	if info, err := os.Stat(srcImages); err == nil && info.IsDir() {
		destImages := filepath.Join(destDir, imagesDir)
		if _, err := os.Stat(destImages); os.IsNotExist(err) {
			if err := os.Rename(srcImages, destImages); err != nil {
				return dest, fmt.Errorf("moving images: %w", err)
			}
		}
	}

	// Remove the old directory when it is left empty.
	if entries, err := os.ReadDir(srcDir); err == nil && len(entries) == 0 {
		os.Remove(srcDir)
	}
	return dest, nil
}
