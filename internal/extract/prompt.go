// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"text/template"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	// bodyBudget and socialBudget bound the prompt sections in characters.
	bodyBudget   = 5000
	socialBudget = 2000

	notProvided = "[not provided]"
)

// systemPrompt frames the generation service as a metadata extractor.
const systemPrompt = `You are an expert at extracting bibliographic metadata from research papers. Extract every field accurately and completely, and reply with JSON only, exactly as requested.`

// metadataPromptTmpl is the prompt sent once per paper. It carries the
// document's declared metadata, the start of its body text, and the social
// post that referenced it.
var metadataPromptTmpl = template.Must(template.New("metadata").Parse(`Extract the complete bibliographic record of the paper described below.

# Document metadata
{{.Metadata}}

# Document text (first {{.BodyBudget}} characters)
{{.Body}}

# Referring post or page (context)
{{.Social}}

Reply with a single JSON object of this shape:

{
  "title": "English title of the paper (required)",
  "authors": ["Author One", "Author Two"],
  "publication_date": "YYYY-MM-DD (use YYYY-01-01 when only the year is known)",
  "venue": "journal or conference name",
  "abstract": "English abstract",
  "affiliations": "Stanford University; MIT",
  "keywords": ["keyword1", "keyword2", "tag1"],
  "doi": "10.1234/example (if any)",
  "arxiv_id": "2410.xxxxx (if this is an arXiv paper)",
  "project_page": "project page URL (if any)",
  "other_resources": "code repositories, datasets, etc. separated by semicolons"
}

Requirements:
1. title is required; any other field without information is null.
2. publication_date is a full YYYY-MM-DD date.
3. authors and keywords are arrays.
4. Other fields may be strings or arrays.
5. Use null when information is missing.
`))

type promptData struct {
	Metadata   string
	Body       string
	Social     string
	BodyBudget int
}

// renderPrompt builds the metadata prompt for rec.
func renderPrompt(rec *types.PaperRecord) (string, error) {
	meta, err := json.MarshalIndent(rec.Metadata, "", "  ")
	if err != nil {
		return "", err
	}
	data := promptData{
		Metadata:   string(meta),
		Body:       orNotProvided(truncateRunes(rec.RawText, bodyBudget)),
		Social:     orNotProvided(truncateRunes(rec.SocialText, socialBudget)),
		BodyBudget: bodyBudget,
	}

	var buf bytes.Buffer
	if err := metadataPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orNotProvided(s string) string {
	if s == "" {
		return notProvided
	}
	return s
}
