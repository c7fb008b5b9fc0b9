// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/extract"
	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrNoDocument is returned when no document could be located for an input.
var ErrNoDocument = errors.New("no document found")

// Describe classifies an input. Inputs that are not http(s) URLs and name
// a file are local documents. Inputs that start with a domain name, such
// as arxiv.org/pdf/1706.03762.pdf, are treated as https URLs. Other inputs
// that look like a document path are local documents; everything else
// goes through acquire.ClassifyLink.
func Describe(input string) types.SourceDescriptor {
	input = strings.TrimSpace(input)
	if isRemote(input) {
		return acquire.ClassifyLink(input)
	}
	if info, err := os.Stat(input); err == nil && !info.IsDir() {
		return localDocument(input)
	}
	if hostPattern.MatchString(input) {
		return acquire.ClassifyLink("https://" + input)
	}
	desc := acquire.ClassifyLink(input)
	if desc.Kind == types.KindDocument {
		return localDocument(input)
	}
	return desc
}

// hostPattern matches inputs that begin with a host name and a path.
var hostPattern = regexp.MustCompile(`(?i)^[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?::\d+)?/`)

func localDocument(path string) types.SourceDescriptor {
	return types.SourceDescriptor{
		Kind:    types.KindDocument,
		URL:     path,
		Message: "local document: reading and analyzing",
	}
}

// IsLocal reports whether desc describes a local document.
func IsLocal(desc types.SourceDescriptor) bool {
	return desc.Kind == types.KindDocument && !isRemote(desc.URL)
}

func isRemote(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// provisionalTitle names the directory a document is downloaded into
// before its title is known. It is unique per run.
func provisionalTitle(runID string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return types.PlaceholderTitle + " " + runID
}

// acquire fetches the input's content and leaves a local document in
// r.docPath.
func (r *run) acquire(ctx context.Context) error {
	desc := r.report.Descriptor
	cfg := r.p.Config
	client := r.p.client()

	if IsLocal(desc) {
		raw, err := acquire.ReadLocalDocument(desc.URL)
		if err != nil {
			return err
		}
		r.docPath = raw.LocalPath
		r.rec.DocumentPath = raw.LocalPath
		r.logger.Info("local document", "path", raw.LocalPath, "bytes", raw.Size)
		return nil
	}

	var docURL string
	switch desc.Kind {
	case types.KindSocialPost:
		raw, err := acquire.FetchSocialPost(ctx, client, desc.URL, cfg.HTTP, cfg.Social)
		if err != nil {
			return err
		}
		r.rec.SocialText = raw.Text
		r.logger.Info("social post fetched", "post_id", raw.SourceMetadata["post_id"], "bytes", raw.Size, "elapsed", raw.Elapsed)
		docURL = r.locateFromPost(ctx, raw.Text)

	case types.KindDocument:
		docURL = desc.DocumentURL()

	default:
		page, err := acquire.ResolvePage(ctx, client, desc, cfg.HTTP)
		if err != nil {
			return err
		}
		r.rec.SocialText = page.Raw.Text
		r.rec.DOI = page.Raw.SourceMetadata["doi"]
		if id := search.NormalizeID(page.Raw.SourceMetadata["arxiv_id"]); id != "" {
			r.rec.ArxivID = id
		}
		docURL = page.DocumentURL
		if docURL == "" {
			docURL = r.searchTitle(ctx, page.Title)
		}
	}

	if docURL == "" {
		return types.NewStageError(types.StageAcquire, types.ErrAcquisition,
			fmt.Errorf("%s: %w", desc.URL, ErrNoDocument))
	}
	if r.rec.ArxivID == "" && strings.Contains(strings.ToLower(docURL), "arxiv.org/") {
		r.rec.ArxivID = search.NormalizeID(docURL)
	}

	r.dirTitle = provisionalTitle(r.report.RunID)
	dest := r.layout.DocumentPath(r.dirTitle)
	raw, err := acquire.FetchRemoteDocument(ctx, client, docURL, dest, cfg.HTTP)
	if err != nil {
		return err
	}
	r.docPath = raw.LocalPath
	r.owned = true
	r.rec.DocumentURL = docURL
	r.rec.DocumentPath = raw.LocalPath
	r.logger.Info("document downloaded", "url", docURL, "bytes", raw.Size, "elapsed", raw.Elapsed)
	return nil
}

// locateFromPost finds the document a social post talks about: an arXiv
// identifier quoted in the post, else the title the post names.
func (r *run) locateFromPost(ctx context.Context, text string) string {
	if strings.Contains(strings.ToLower(text), "arxiv") {
		if id := search.NormalizeID(text); id != "" {
			r.rec.ArxivID = id
			return acquire.ArxivPDFURL(id)
		}
	}

	// The post names the paper in free text; one generation call reads
	// the title and identifier out of it.
	if _, err := extract.ExtractMetadata(ctx, r.p.Generator, nil, r.rec, r.logger); err != nil {
		r.logger.Warn("could not read paper details from post", "error", err)
		return ""
	}
	if r.rec.ArxivID != "" {
		return acquire.ArxivPDFURL(r.rec.ArxivID)
	}
	if r.rec.HasPlaceholderTitle() {
		return ""
	}
	return r.searchTitle(ctx, r.rec.Title)
}

// searchTitle looks the title up on arXiv and returns the document URL of
// the best match, or "".
func (r *run) searchTitle(ctx context.Context, title string) string {
	if r.p.Arxiv == nil || strings.TrimSpace(title) == "" {
		return ""
	}
	entry, err := r.p.Arxiv.SearchByTitle(ctx, title)
	if err != nil {
		r.logger.Warn("arXiv title search failed", "title", title, "error", err)
		return ""
	}
	r.rec.ArxivID = entry.ID
	r.logger.Info("document found by title", "title", title, "arxiv_id", entry.ID, "match", entry.Title)
	return entry.PDFURL()
}
