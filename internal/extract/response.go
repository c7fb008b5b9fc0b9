// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// metadataResponse is the JSON the generation service returns. Field types
// are lenient: services reply with strings, arrays, numbers, or null.
type metadataResponse struct {
	Title           flexString `json:"title"`
	Authors         flexList   `json:"authors"`
	PublicationDate flexString `json:"publication_date"`
	Venue           flexString `json:"venue"`
	Abstract        flexString `json:"abstract"`
	Affiliations    flexString `json:"affiliations"`
	Keywords        flexList   `json:"keywords"`
	DOI             flexString `json:"doi"`
	ArxivID         flexString `json:"arxiv_id"`
	ProjectPage     flexString `json:"project_page"`
	OtherResources  flexString `json:"other_resources"`
}

// flexString accepts a string, a number, an array (joined with "; "), or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(cleanValue(s))
	case '[':
		var items flexList
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*f = flexString(strings.Join(items, "; "))
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if b, ok := v.(bool); ok && !b {
			*f = ""
			return nil
		}
		*f = flexString(fmt.Sprint(v))
	}
	return nil
}

// flexList accepts an array of scalars, a comma- or semicolon-separated
// string, or null.
type flexList []string

func (f *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = splitList(s)
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out []string
	for _, v := range raw {
		if v == nil {
			continue
		}
		if s := cleanValue(fmt.Sprint(v)); s != "" {
			out = append(out, s)
		}
	}
	*f = out
	return nil
}

func splitList(s string) []string {
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := cleanValue(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cleanValue trims a value and maps placeholder strings to "".
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "unknown":
		return ""
	}
	return s
}

// decodeResponse parses a reply, tolerating a fenced block or prose
// around the JSON object.
func decodeResponse(reply string) (metadataResponse, error) {
	text := strings.TrimSpace(reply)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var resp metadataResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return metadataResponse{}, fmt.Errorf("parsing metadata JSON: %w", err)
	}
	return resp, nil
}
