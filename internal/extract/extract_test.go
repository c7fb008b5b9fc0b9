// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// mockGenerator returns a canned reply and records the prompts it saw.
type mockGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, _, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

type mockLookup struct {
	entry search.ArxivEntry
	err   error
	calls []string
}

func (m *mockLookup) LookupArxiv(_ context.Context, id string) (search.ArxivEntry, error) {
	m.calls = append(m.calls, id)
	return m.entry, m.err
}

const fullReply = "```json\n" + `{
  "title": "Attention Is All You Need",
  "authors": ["Ashish Vaswani", "Noam Shazeer"],
  "publication_date": "2017-06-12",
  "venue": "NeurIPS",
  "abstract": "The dominant sequence transduction models...",
  "affiliations": ["Google Brain", "Google Research"],
  "keywords": "transformer, attention",
  "doi": null,
  "arxiv_id": "arXiv:1706.03762",
  "project_page": "N/A",
  "other_resources": ["https://github.com/tensorflow/tensor2tensor"]
}` + "\n```"

func newRecord() *types.PaperRecord {
	rec := types.NewPaperRecord("https://example.com/post")
	rec.RawText = "Attention Is All You Need. Abstract. The dominant sequence transduction models"
	rec.SocialText = "读论文: Transformer"
	return rec
}

func TestExtractMetadata(t *testing.T) {
	gen := &mockGenerator{reply: fullReply}
	lookup := &mockLookup{err: search.ErrNotFound}
	rec := newRecord()

	_, err := ExtractMetadata(context.Background(), gen, lookup, rec, nil)
	require.NoError(t, err)

	assert.Equal(t, "Attention Is All You Need", rec.Title)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, rec.Authors)
	assert.Equal(t, "2017-06-12", rec.PublicationDate())
	assert.Equal(t, "NeurIPS", rec.Venue)
	assert.Equal(t, "Google Brain; Google Research", rec.Affiliations)
	assert.Equal(t, []string{"transformer", "attention"}, rec.Keywords)
	assert.Empty(t, rec.DOI)
	assert.Empty(t, rec.ProjectPage)
	assert.Equal(t, "1706.03762", rec.ArxivID)
	assert.Equal(t, "https://github.com/tensorflow/tensor2tensor", rec.OtherResources)

	require.Len(t, gen.prompts, 1, "metadata is extracted with a single call")
	assert.Contains(t, gen.prompts[0], "Transformer")
	assert.Equal(t, []string{"1706.03762"}, lookup.calls)
}

func TestExtractMetadata_BareYear(t *testing.T) {
	gen := &mockGenerator{reply: `{"title": "T", "publication_date": 2023}`}
	rec := newRecord()

	_, err := ExtractMetadata(context.Background(), gen, nil, rec, nil)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01", rec.PublicationDate())
}

func TestExtractMetadata_UnparseableDate(t *testing.T) {
	gen := &mockGenerator{reply: `{"title": "T", "publication_date": "sometime in spring"}`}
	rec := newRecord()

	_, err := ExtractMetadata(context.Background(), gen, nil, rec, nil)
	require.NoError(t, err)
	assert.Empty(t, rec.PublicationDate())
}

func TestExtractMetadata_NoArxivIDSkipsLookup(t *testing.T) {
	gen := &mockGenerator{reply: `{"title": "A Paper", "arxiv_id": null}`}
	lookup := &mockLookup{}
	rec := newRecord()

	res, err := ExtractMetadata(context.Background(), gen, lookup, rec, nil)
	require.NoError(t, err)
	assert.Empty(t, lookup.calls)
	assert.Equal(t, EnrichNone, res.Enrichment)
}

func TestExtractMetadata_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"not json", "I could not find any metadata.", nil},
		{"truncated", `{"title": "Half`, nil},
		{"service error", "", errors.New("HTTP 500")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecord()
			_, err := ExtractMetadata(context.Background(), &mockGenerator{reply: tt.reply, err: tt.err}, nil, rec, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrExtraction)
			assert.Equal(t, types.PlaceholderTitle, rec.Title)
		})
	}
}

func TestExtractMetadata_BlankTitleKeepsPlaceholder(t *testing.T) {
	rec := newRecord()
	_, err := ExtractMetadata(context.Background(), &mockGenerator{reply: `{"title": "  ", "venue": "ICML"}`}, nil, rec, nil)
	require.NoError(t, err)
	assert.True(t, rec.HasPlaceholderTitle())
	assert.Equal(t, "ICML", rec.Venue)
}

func TestExtractMetadata_AbsentFieldsKeepValues(t *testing.T) {
	rec := newRecord()
	rec.Venue = "ICML"
	rec.DOI = "10.1000/old"
	_, err := ExtractMetadata(context.Background(), &mockGenerator{reply: `{"title": "T", "venue": null, "doi": "10.1000/new"}`}, nil, rec, nil)
	require.NoError(t, err)
	assert.Equal(t, "ICML", rec.Venue, "a missing field leaves the record alone")
	assert.Equal(t, "10.1000/new", rec.DOI, "a present field replaces the record value")
}

func TestEnrich(t *testing.T) {
	published := time.Date(2024, 10, 6, 17, 59, 0, 0, time.UTC)
	extracted := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		entry     search.ArxivEntry
		date      time.Time
		want      Enrichment
		wantVenue string
		wantDate  string
	}{
		{
			name:      "journal reference wins",
			entry:     search.ArxivEntry{JournalRef: "NeurIPS 2024", Comment: "Accepted at ICLR", Published: published},
			want:      EnrichJournalRef,
			wantVenue: "NeurIPS 2024",
		},
		{
			name:      "comment when no journal reference",
			entry:     search.ArxivEntry{Comment: "Accepted at ICLR 2025", Published: published},
			want:      EnrichComment,
			wantVenue: "Accepted at ICLR 2025",
		},
		{
			name:      "published date fills missing date",
			entry:     search.ArxivEntry{Published: published},
			want:      EnrichPublished,
			wantVenue: "arXiv",
			wantDate:  "2024-10-06",
		},
		{
			name:      "published date never overrides",
			entry:     search.ArxivEntry{Published: published},
			date:      extracted,
			want:      EnrichNone,
			wantVenue: "arXiv",
			wantDate:  "2024-01-01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &types.PaperRecord{Title: "T", ArxivID: "2410.04618", Venue: "arXiv", PublishedOn: tt.date}
			got := Enrich(context.Background(), &mockLookup{entry: tt.entry}, rec, nil)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantVenue, rec.Venue)
			assert.Equal(t, tt.wantDate, rec.PublicationDate())
		})
	}
}

func TestEnrich_LookupFailureKeepsValues(t *testing.T) {
	rec := &types.PaperRecord{Title: "T", ArxivID: "2410.04618", Venue: "ICML"}
	got := Enrich(context.Background(), &mockLookup{err: errors.New("timeout")}, rec, nil)
	assert.Equal(t, EnrichNone, got)
	assert.Equal(t, "ICML", rec.Venue)
}

func TestRenderPromptBudgets(t *testing.T) {
	rec := types.NewPaperRecord("")
	rec.RawText = strings.Repeat("b", bodyBudget+100)
	p, err := renderPrompt(rec)
	require.NoError(t, err)
	assert.Contains(t, p, strings.Repeat("b", bodyBudget))
	assert.NotContains(t, p, strings.Repeat("b", bodyBudget+1))
	assert.Contains(t, p, notProvided, "missing social text is marked")
}

func TestDecodeResponseLenient(t *testing.T) {
	resp, err := decodeResponse(`Here is the record: {"title": "X", "authors": "A. One; B. Two", "keywords": ["k", null, 3]} thanks`)
	require.NoError(t, err)
	assert.Equal(t, flexString("X"), resp.Title)
	assert.Equal(t, flexList{"A. One", "B. Two"}, resp.Authors)
	assert.Equal(t, flexList{"k", "3"}, resp.Keywords)
}
