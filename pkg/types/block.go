// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MaxBlocks is the external store's limit on top-level blocks per write.
const MaxBlocks = 100

// BlockKind identifies the kind of a persisted block.
type BlockKind string

const (
	BlockHeading1  BlockKind = "heading_1"
	BlockHeading2  BlockKind = "heading_2"
	BlockHeading3  BlockKind = "heading_3"
	BlockParagraph BlockKind = "paragraph"
	BlockBullet    BlockKind = "bulleted_list_item"
	BlockNumbered  BlockKind = "numbered_list_item"
	BlockQuote     BlockKind = "quote"
	BlockCode      BlockKind = "code"
	BlockDivider   BlockKind = "divider"
	BlockTable     BlockKind = "table"
	BlockImage     BlockKind = "image"
)

// Span is a run of rich text with uniform formatting.
type Span struct {
	Text          string `json:"text" yaml:"text"`
	Bold          bool   `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty" yaml:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty" yaml:"strikethrough,omitempty"`
	Code          bool   `json:"code,omitempty" yaml:"code,omitempty"`
	Link          string `json:"link,omitempty" yaml:"link,omitempty"`
}

// Block is one unit of persisted content.
type Block struct {
	Kind BlockKind `json:"kind" yaml:"kind"`

	// Text holds the rich text of headings, paragraphs, list items,
	// quotes, code, and image captions.
	Text []Span `json:"text,omitempty" yaml:"text,omitempty"`

	// Language is the code block language.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// ImageURL is the resolved reference of an image block.
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`

	// Rows holds table cells; the first row is the header when
	// HasHeader is set.
	Rows      [][][]Span `json:"rows,omitempty" yaml:"rows,omitempty"`
	HasHeader bool       `json:"has_header,omitempty" yaml:"has_header,omitempty"`

	// Children are nested blocks (nested list items).
	Children []Block `json:"children,omitempty" yaml:"children,omitempty"`
}

// PlainText concatenates the block's spans.
func (b Block) PlainText() string {
	var s string
	for _, sp := range b.Text {
		s += sp.Text
	}
	return s
}

// Persisted identifies the record an external store created.
type Persisted struct {
	RecordID  string `json:"record_id" yaml:"record_id"`
	RecordURL string `json:"record_url" yaml:"record_url"`
}
