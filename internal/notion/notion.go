// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notion persists paper records and their digest blocks as pages
// of a Notion database.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jomei/notionapi"

	"github.com/pdiddy/paper-digest/internal/digest"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Limits imposed by the Notion API.
const (
	maxRichText    = 2000
	maxKeywords    = 10
	maxOptionChars = 100
)

const pageURLBase = "https://notion.so/"

// ErrNotConfigured is returned when the token or database is missing.
var ErrNotConfigured = errors.New("notion token or database ID not configured")

// Store writes paper pages into one database.
type Store struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
	logger     *slog.Logger
}

// New returns a Store for cfg. httpClient may be nil.
func New(cfg types.NotionConfig, httpClient *http.Client, logger *slog.Logger) (*Store, error) {
	if cfg.Token == "" || cfg.DatabaseID == "" {
		return nil, ErrNotConfigured
	}
	var opts []notionapi.ClientOption
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:     notionapi.NewClient(notionapi.Token(cfg.Token), opts...),
		databaseID: notionapi.DatabaseID(cfg.DatabaseID),
		logger:     logger,
	}, nil
}

// Save creates a page for rec whose body is blocks. The digest supplies
// the localized abstract.
func (s *Store) Save(ctx context.Context, rec *types.PaperRecord, doc types.DigestDocument, blocks []types.Block) (types.Persisted, error) {
	if len(blocks) > types.MaxBlocks {
		s.logger.Warn("too many blocks for one page, truncating", "blocks", len(blocks), "limit", types.MaxBlocks)
		blocks = blocks[:types.MaxBlocks]
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.databaseID,
		},
		Properties: properties(rec, doc),
		Children:   toNotionBlocks(blocks),
	}

	page, err := s.client.Page.Create(ctx, req)
	if err != nil {
		return types.Persisted{}, types.NewStageError(types.StagePersist, types.ErrPersistence, fmt.Errorf("creating page: %w", err))
	}

	id := string(page.ID)
	out := types.Persisted{
		RecordID:  id,
		RecordURL: pageURLBase + strings.ReplaceAll(id, "-", ""),
	}
	s.logger.Info("page created", "record_id", out.RecordID, "url", out.RecordURL, "blocks", len(blocks))
	return out, nil
}

// properties maps rec onto the database columns. Empty values are omitted.
func properties(rec *types.PaperRecord, doc types.DigestDocument) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{Title: richText(rec.Title)},
	}

	abstract := rec.Abstract
	if doc.Markdown != "" {
		abstract = digest.LocalizedAbstract(doc.Markdown)
	}

	text := map[string]string{
		"Authors":         strings.Join(rec.Authors, ", "),
		"Affiliations":    rec.Affiliations,
		"Venue":           rec.Venue,
		"Abstract":        abstract,
		"ArXiv ID":        rec.ArxivID,
		"Other Resources": rec.OtherResources,
	}
	for name, v := range text {
		if strings.TrimSpace(v) != "" {
			props[name] = notionapi.RichTextProperty{RichText: richText(v)}
		}
	}

	urls := map[string]string{
		"Project Page": rec.ProjectPage,
		"PDF Link":     rec.DocumentURL,
		"Source URL":   rec.SourceURL,
	}
	for name, v := range urls {
		if isWebURL(v) {
			props[name] = notionapi.URLProperty{URL: v}
		}
	}

	if opts := keywordOptions(rec.Keywords); len(opts) > 0 {
		props["Keywords"] = notionapi.MultiSelectProperty{MultiSelect: opts}
	}

	if d, ok := validDate(rec.PublicationDate()); ok {
		date := notionapi.Date(d)
		props["Publication Date"] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}}
	}
	return props
}

// keywordOptions returns at most maxKeywords multi-select options. Commas
// are not allowed in option names.
func keywordOptions(keywords []string) []notionapi.Option {
	var opts []notionapi.Option
	for _, k := range keywords {
		k = strings.TrimSpace(strings.ReplaceAll(k, ",", " "))
		if k == "" {
			continue
		}
		opts = append(opts, notionapi.Option{Name: truncate(k, maxOptionChars)})
		if len(opts) == maxKeywords {
			break
		}
	}
	return opts
}

// validDate accepts only full YYYY-MM-DD dates.
func validDate(s string) (time.Time, bool) {
	if len(s) != len(types.DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isWebURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: truncate(s, maxRichText)},
	}}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
