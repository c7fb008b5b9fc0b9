// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract derives a paper record from parsed document text with
// one structured-generation call, then refines venue and date through a
// bibliographic lookup when the paper has an arXiv identifier.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Lookup resolves an arXiv identifier to its record. Satisfied by
// *search.ArxivClient and by test fakes.
type Lookup interface {
	LookupArxiv(ctx context.Context, id string) (search.ArxivEntry, error)
}

// Enrichment names the lookup field that refined the record.
type Enrichment string

const (
	EnrichNone       Enrichment = ""
	EnrichJournalRef Enrichment = "journal_ref"
	EnrichComment    Enrichment = "comment"
	EnrichPublished  Enrichment = "published"
)

// Result summarizes one extraction.
type Result struct {
	Enrichment Enrichment
}

// ExtractMetadata fills rec from a single generation call. On a failed
// call or malformed reply rec keeps its current (placeholder) title and
// the returned error wraps types.ErrExtraction; callers continue the run.
func ExtractMetadata(ctx context.Context, gen llm.Generator, lookup Lookup, rec *types.PaperRecord, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	prompt, err := renderPrompt(rec)
	if err != nil {
		return Result{}, extractionError(fmt.Errorf("rendering prompt: %w", err))
	}

	reply, err := gen.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return Result{}, extractionError(fmt.Errorf("generating metadata: %w", err))
	}

	resp, err := decodeResponse(llm.StripFences(reply))
	if err != nil {
		return Result{}, extractionError(err)
	}

	apply(resp, rec, logger)

	logger.Info("metadata extracted",
		"title", rec.Title,
		"authors", len(rec.Authors),
		"keywords", len(rec.Keywords),
		"venue", rec.Venue,
		"publication_date", rec.PublicationDate(),
		"arxiv_id", rec.ArxivID,
	)

	var result Result
	if rec.ArxivID != "" && lookup != nil {
		result.Enrichment = Enrich(ctx, lookup, rec, logger)
	}
	return result, nil
}

// apply copies non-empty response fields onto rec.
func apply(resp metadataResponse, rec *types.PaperRecord, logger *slog.Logger) {
	if t := string(resp.Title); t != "" {
		rec.SetTitle(t)
	} else if rec.Title == "" {
		rec.SetTitle("")
	}
	if len(resp.Authors) > 0 {
		rec.Authors = []string(resp.Authors)
	}
	if d := string(resp.PublicationDate); d != "" {
		if t, ok := types.ParseCalendarDate(d); ok {
			rec.PublishedOn = t
		} else {
			logger.Warn("ignoring unparseable publication date", "value", d)
		}
	}
	setIfPresent := func(dst *string, v flexString) {
		if v != "" {
			*dst = string(v)
		}
	}
	setIfPresent(&rec.Venue, resp.Venue)
	setIfPresent(&rec.Abstract, resp.Abstract)
	setIfPresent(&rec.Affiliations, resp.Affiliations)
	setIfPresent(&rec.DOI, resp.DOI)
	setIfPresent(&rec.ProjectPage, resp.ProjectPage)
	setIfPresent(&rec.OtherResources, resp.OtherResources)
	if id := search.NormalizeID(string(resp.ArxivID)); id != "" {
		rec.ArxivID = id
	}
	rec.AddKeywords(resp.Keywords...)
}

// Enrich refines venue and date from the arXiv record of rec.ArxivID. The
// journal reference wins over the comments field; the arXiv publication
// date is used only when neither exists and rec has no date. A failed
// lookup leaves rec unchanged.
func Enrich(ctx context.Context, lookup Lookup, rec *types.PaperRecord, logger *slog.Logger) Enrichment {
	if logger == nil {
		logger = slog.Default()
	}
	entry, err := lookup.LookupArxiv(ctx, rec.ArxivID)
	if err != nil {
		logger.Warn("arXiv lookup failed, keeping extracted metadata", "arxiv_id", rec.ArxivID, "error", err)
		return EnrichNone
	}

	switch {
	case entry.JournalRef != "":
		rec.Venue = entry.JournalRef
		logger.Info("venue from arXiv journal reference", "venue", entry.JournalRef)
		return EnrichJournalRef
	case entry.Comment != "":
		rec.Venue = entry.Comment
		logger.Info("venue from arXiv comments", "venue", entry.Comment)
		return EnrichComment
	case !entry.Published.IsZero() && rec.PublishedOn.IsZero():
		p := entry.Published.UTC()
		rec.PublishedOn = time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC)
		logger.Info("publication date from arXiv", "publication_date", rec.PublicationDate())
		return EnrichPublished
	}
	return EnrichNone
}

func extractionError(err error) error {
	return types.NewStageError(types.StageExtract, types.ErrExtraction, err)
}
