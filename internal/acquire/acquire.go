// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire classifies input links and fetches their raw content:
// social posts, remote documents, local documents, and bibliographic
// pages. Every acquirer reports elapsed time and size and none retry.
package acquire

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// FetchRemoteDocument downloads rawURL to destPath. The body is streamed to
// a temporary file next to destPath and renamed on success, so destPath
// never holds a partial download.
func FetchRemoteDocument(ctx context.Context, client *http.Client, rawURL, destPath string, cfg types.HTTPConfig) (types.RawContent, error) {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return types.RawContent{}, acquisitionError(fmt.Errorf("creating directory: %w", err))
	}

	resp, err := httputil.Get(ctx, client, rawURL, cfg.UserAgent, map[string]string{
		"Accept": "application/pdf",
	})
	if err != nil {
		return types.RawContent{}, acquisitionError(fmt.Errorf("downloading %s: %w", rawURL, err))
	}
	defer resp.Body.Close()

	n, err := writeAtomic(resp.Body, destPath)
	if err != nil {
		return types.RawContent{}, acquisitionError(fmt.Errorf("downloading %s: %w", rawURL, err))
	}

	return types.RawContent{
		LocalPath: destPath,
		SourceMetadata: map[string]string{
			"url":       rawURL,
			"final_url": resp.Request.URL.String(),
		},
		Elapsed: time.Since(start),
		Size:    n,
	}, nil
}

// ReadLocalDocument checks that path names a readable document.
func ReadLocalDocument(path string) (types.RawContent, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return types.RawContent{}, acquisitionError(fmt.Errorf("reading %s: %w", path, err))
	}
	if info.IsDir() {
		return types.RawContent{}, acquisitionError(fmt.Errorf("reading %s: is a directory", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return types.RawContent{}, acquisitionError(fmt.Errorf("reading %s: %w", path, err))
	}
	f.Close()

	return types.RawContent{
		LocalPath:      path,
		SourceMetadata: map[string]string{"path": path},
		Elapsed:        time.Since(start),
		Size:           info.Size(),
	}, nil
}

// writeAtomic copies r to a temp file in dest's directory and renames it to
// dest. Content that does not start with the PDF signature is rejected.
func writeAtomic(r io.Reader, dest string) (int64, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(pdfMagic))
	if !bytes.Equal(head, pdfMagic) {
		return 0, fmt.Errorf("response is not a PDF document")
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".acquire-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, br)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

func acquisitionError(err error) error {
	return types.NewStageError(types.StageAcquire, types.ErrAcquisition, err)
}
