// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notion

import (
	"strings"

	"github.com/jomei/notionapi"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// codeLanguages are the code block languages Notion accepts that digests
// commonly use. Anything else is stored as plain text.
var codeLanguages = map[string]string{
	"bash": "bash", "sh": "shell", "shell": "shell", "c": "c", "cpp": "c++", "c++": "c++",
	"css": "css", "go": "go", "golang": "go", "html": "html", "java": "java",
	"javascript": "javascript", "js": "javascript", "json": "json", "latex": "latex",
	"tex": "latex", "markdown": "markdown", "md": "markdown", "python": "python",
	"py": "python", "rust": "rust", "sql": "sql", "typescript": "typescript",
	"ts": "typescript", "yaml": "yaml", "yml": "yaml",
}

func codeLanguage(lang string) string {
	if l, ok := codeLanguages[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return l
	}
	return "plain text"
}

func basic(t notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: t}
}

// toNotionBlocks converts serialized blocks to API blocks.
func toNotionBlocks(blocks []types.Block) []notionapi.Block {
	out := make([]notionapi.Block, 0, len(blocks))
	for _, b := range blocks {
		if nb := toNotionBlock(b); nb != nil {
			out = append(out, nb)
		}
	}
	return out
}

func toNotionBlock(b types.Block) notionapi.Block {
	text := spans(b.Text)
	switch b.Kind {
	case types.BlockHeading1:
		return &notionapi.Heading1Block{BasicBlock: basic(notionapi.BlockTypeHeading1), Heading1: notionapi.Heading{RichText: text}}
	case types.BlockHeading2:
		return &notionapi.Heading2Block{BasicBlock: basic(notionapi.BlockTypeHeading2), Heading2: notionapi.Heading{RichText: text}}
	case types.BlockHeading3:
		return &notionapi.Heading3Block{BasicBlock: basic(notionapi.BlockTypeHeading3), Heading3: notionapi.Heading{RichText: text}}
	case types.BlockParagraph:
		return &notionapi.ParagraphBlock{BasicBlock: basic(notionapi.BlockTypeParagraph), Paragraph: notionapi.Paragraph{RichText: text, Children: toNotionBlocks(b.Children)}}
	case types.BlockBullet:
		return &notionapi.BulletedListItemBlock{BasicBlock: basic(notionapi.BlockTypeBulletedListItem), BulletedListItem: notionapi.ListItem{RichText: text, Children: toNotionBlocks(b.Children)}}
	case types.BlockNumbered:
		return &notionapi.NumberedListItemBlock{BasicBlock: basic(notionapi.BlockTypeNumberedListItem), NumberedListItem: notionapi.ListItem{RichText: text, Children: toNotionBlocks(b.Children)}}
	case types.BlockQuote:
		return &notionapi.QuoteBlock{BasicBlock: basic(notionapi.BlockTypeQuote), Quote: notionapi.Quote{RichText: text}}
	case types.BlockCode:
		return &notionapi.CodeBlock{BasicBlock: basic(notionapi.BlockTypeCode), Code: notionapi.Code{RichText: text, Language: codeLanguage(b.Language)}}
	case types.BlockDivider:
		return &notionapi.DividerBlock{BasicBlock: basic(notionapi.BlockTypeDivider), Divider: notionapi.Divider{}}
	case types.BlockImage:
		return &notionapi.ImageBlock{BasicBlock: basic(notionapi.BlockTypeImage), Image: notionapi.Image{
			Type:     notionapi.FileTypeExternal,
			External: &notionapi.FileObject{URL: b.ImageURL},
			Caption:  text,
		}}
	case types.BlockTable:
		return table(b)
	}
	return nil
}

// table converts a table block; rows are padded to the widest row.
func table(b types.Block) notionapi.Block {
	width := 0
	for _, r := range b.Rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return nil
	}
	rows := make([]notionapi.Block, 0, len(b.Rows))
	for _, r := range b.Rows {
		cells := make([][]notionapi.RichText, width)
		for i := range cells {
			if i < len(r) {
				cells[i] = spans(r[i])
			} else {
				cells[i] = []notionapi.RichText{}
			}
		}
		rows = append(rows, &notionapi.TableRowBlock{
			BasicBlock: basic(notionapi.BlockType("table_row")),
			TableRow:   notionapi.TableRow{Cells: cells},
		})
	}
	return &notionapi.TableBlock{
		BasicBlock: basic(notionapi.BlockType("table")),
		Table: notionapi.Table{
			TableWidth:      width,
			HasColumnHeader: b.HasHeader,
			Children:        rows,
		},
	}
}

// spans converts rich text; a nil input becomes an empty list, which the
// API requires over null.
func spans(in []types.Span) []notionapi.RichText {
	out := make([]notionapi.RichText, 0, len(in))
	for _, s := range in {
		rt := notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: truncate(s.Text, maxRichText)},
		}
		if s.Link != "" && isWebURL(s.Link) {
			rt.Text.Link = &notionapi.Link{Url: s.Link}
		}
		if s.Bold || s.Italic || s.Strikethrough || s.Code {
			rt.Annotations = &notionapi.Annotations{
				Bold:          s.Bold,
				Italic:        s.Italic,
				Strikethrough: s.Strikethrough,
				Code:          s.Code,
				Color:         notionapi.ColorDefault,
			}
		}
		out = append(out, rt)
	}
	return out
}
