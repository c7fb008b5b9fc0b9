// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package figures extracts figures and tables from documents, orders,
// classifies and scores them, and places them into rendered digests.
package figures

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pdiddy/paper-digest/internal/container"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Extractor names accepted by NewExtractor.
const (
	ExtractorContainer = "container"
	ExtractorBinary    = "binary"
)

// sourceName is recorded on every figure this package extracts.
const sourceName = "pdffigures2"

// Container paths the document and image directories are mounted at.
const (
	containerInput  = "/in"
	containerOutput = "/out"
)

// Extractor produces candidate figures for a document, writing their
// images into imagesDir.
type Extractor interface {
	Extract(ctx context.Context, pdfPath, imagesDir string) ([]types.Figure, error)
}

// NewExtractor returns the extractor selected by cfg.Extractor.
func NewExtractor(cfg types.FiguresConfig) (Extractor, error) {
	switch cfg.Extractor {
	case "", ExtractorContainer:
		return &ContainerExtractor{Image: cfg.Image}, nil
	case ExtractorBinary:
		return &BinaryExtractor{Binary: cfg.Binary}, nil
	default:
		return nil, fmt.Errorf("unknown figure extractor %q (want %s or %s)", cfg.Extractor, ExtractorContainer, ExtractorBinary)
	}
}

// ContainerExtractor runs pdffigures2 in a container. The runtime is
// detected on first use when Runtime is nil, so a missing runtime only
// fails figure extraction.
type ContainerExtractor struct {
	Image   string
	Runtime container.Runtime

	once      sync.Once
	detectErr error
}

func (c *ContainerExtractor) runtime(ctx context.Context) (container.Runtime, error) {
	c.once.Do(func() {
		if c.Runtime == nil {
			c.Runtime, c.detectErr = container.DetectRuntime(ctx)
		}
	})
	return c.Runtime, c.detectErr
}

// Extract implements Extractor.
func (c *ContainerExtractor) Extract(ctx context.Context, pdfPath, imagesDir string) ([]types.Figure, error) {
	rt, err := c.runtime(ctx)
	if err != nil {
		return nil, engineError(err)
	}
	if err := rt.ImageExists(ctx, c.Image); err != nil {
		return nil, engineError(err)
	}
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, engineError(fmt.Errorf("creating images directory: %w", err))
	}

	absPDF, err := filepath.Abs(pdfPath)
	if err != nil {
		return nil, engineError(err)
	}
	absImages, err := filepath.Abs(imagesDir)
	if err != nil {
		return nil, engineError(err)
	}

	var stderr strings.Builder
	err = rt.Run(ctx, container.RunSpec{
		Image: c.Image,
		Mounts: []container.Mount{
			{Source: filepath.Dir(absPDF), Target: containerInput, ReadOnly: true},
			{Source: absImages, Target: containerOutput},
		},
		Args:   toolArgs(containerInput+"/"+filepath.Base(absPDF), containerOutput+"/"),
		User:   hostUser(),
		Stderr: &stderr,
	})
	if err != nil {
		return nil, engineError(fmt.Errorf("%w: %s", err, tail(stderr.String())))
	}
	return readOutput(imagesDir, pdfPath)
}

// hostUser returns "uid:gid" of the current process, or "" where the
// platform has no numeric IDs.
func hostUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

// runCommand runs a local binary. Replaced in tests.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// BinaryExtractor runs a locally installed pdffigures2 command.
type BinaryExtractor struct {
	Binary string
}

// Extract implements Extractor.
func (b *BinaryExtractor) Extract(ctx context.Context, pdfPath, imagesDir string) ([]types.Figure, error) {
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, engineError(fmt.Errorf("creating images directory: %w", err))
	}
	out, err := runCommand(ctx, b.Binary, toolArgs(pdfPath, imagesDir+string(filepath.Separator))...)
	if err != nil {
		return nil, engineError(fmt.Errorf("running %s: %w: %s", b.Binary, err, tail(string(out))))
	}
	return readOutput(imagesDir, pdfPath)
}

// toolArgs are the pdffigures2 arguments: render images under the image
// prefix and write the figure JSON under the same prefix.
func toolArgs(pdf, prefix string) []string {
	return []string{pdf, "-m", prefix, "-d", prefix}
}

// toolFigure is one record of the extractor's JSON output.
type toolFigure struct {
	Name      string `json:"name"`
	FigType   string `json:"figType"`
	Page      int    `json:"page"`
	Caption   string `json:"caption"`
	RenderURL string `json:"renderURL"`
}

// readOutput loads the JSON the extractor wrote for pdfPath into imagesDir.
func readOutput(imagesDir, pdfPath string) ([]types.Figure, error) {
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	path := filepath.Join(imagesDir, stem+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engineError(fmt.Errorf("reading extractor output: %w", err))
	}

	var records []toolFigure
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, engineError(fmt.Errorf("parsing extractor output %s: %w", path, err))
	}

	figs := make([]types.Figure, 0, len(records))
	for _, r := range records {
		if r.RenderURL == "" {
			continue
		}
		typ := types.TypeFigure
		if strings.EqualFold(r.FigType, string(types.TypeTable)) {
			typ = types.TypeTable
		}
		figs = append(figs, types.Figure{
			Type:     typ,
			Number:   strings.TrimSpace(r.Name),
			Caption:  strings.TrimSpace(r.Caption),
			Filename: filepath.Base(r.RenderURL),
			Page:     r.Page + 1,
			Source:   sourceName,
		})
	}
	return Dedupe(figs), nil
}

// Dedupe drops figures whose (type, number) was already seen. The first
// occurrence wins.
func Dedupe(figs []types.Figure) []types.Figure {
	seen := make(map[string]bool, len(figs))
	out := figs[:0:0]
	for _, f := range figs {
		if seen[f.Key()] {
			continue
		}
		seen[f.Key()] = true
		out = append(out, f)
	}
	return out
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 400
	if len(s) > max {
		i := len(s) - max
		for i < len(s) && !utf8.RuneStart(s[i]) {
			i++
		}
		return "..." + s[i:]
	}
	return s
}

func engineError(err error) error {
	return types.NewStageError(types.StageFigures, types.ErrFigureEngine, err)
}
