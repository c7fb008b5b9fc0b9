// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figures

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// nonNumeric orders figures without a numeric number after all others.
const nonNumeric = 999

var (
	methodTerms     = []string{"method", "architecture", "framework", "mechanism", "optimization"}
	experimentTerms = []string{"performance", "result", "comparison", "experiment", "training"}
)

// Sort orders figures before tables, then by number ascending with
// non-numeric numbers last. The sort is stable.
func Sort(figs []types.Figure) {
	sort.SliceStable(figs, func(i, j int) bool {
		ti, tj := typeRank(figs[i]), typeRank(figs[j])
		if ti != tj {
			return ti < tj
		}
		return sortNumber(figs[i]) < sortNumber(figs[j])
	})
}

func typeRank(f types.Figure) int {
	if f.Type == types.TypeTable {
		return 1
	}
	return 0
}

func sortNumber(f types.Figure) int {
	if n, ok := f.NumericNumber(); ok {
		return n
	}
	return nonNumeric
}

// Classify assigns the digest section a figure belongs to. The first two
// figures of a paper usually present the method.
func Classify(f types.Figure) types.Bucket {
	caption := strings.ToLower(f.Caption)
	switch {
	case f.Type == types.TypeFigure && sortNumber(f) <= 2:
		return types.BucketMethod
	case containsAny(caption, methodTerms):
		return types.BucketMethod
	case containsAny(caption, experimentTerms) || f.Type == types.TypeTable:
		return types.BucketExperiment
	default:
		return types.BucketOther
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

var (
	htmlImagePattern     = regexp.MustCompile(`<img[^>]*?\ssrc="(?:[^"]*/)?([^/"]+)"`)
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\((?:[^)\s]*/)?([^/)\s]+)(?:\s+"[^"]*")?\)`)
	figureBlockPattern   = regexp.MustCompile(`(?s)<figure\b[^>]*>.*?</figure>[ \t]*\n?`)
	imgTagPattern        = regexp.MustCompile(`<img\b[^>]*>`)
	blankRunPattern      = regexp.MustCompile(`\n{3,}`)
)

// ReferencedFilenames returns the image filenames markdown already embeds,
// through either <img src> tags or ![]() images.
func ReferencedFilenames(markdown string) map[string]bool {
	refs := make(map[string]bool)
	for _, re := range []*regexp.Regexp{htmlImagePattern, markdownImagePattern} {
		for _, m := range re.FindAllStringSubmatch(markdown, -1) {
			refs[m[1]] = true
		}
	}
	return refs
}

// StripIneligible removes figure blocks and images that reference a file
// outside keep, and returns the markdown with the number removed.
func StripIneligible(markdown string, keep []types.Figure) (string, int) {
	allowed := make(map[string]bool, len(keep))
	for _, f := range keep {
		allowed[f.Filename] = true
	}
	removed := 0
	strip := func(fragment string) string {
		for name := range ReferencedFilenames(fragment) {
			if !allowed[name] {
				removed++
				return ""
			}
		}
		return fragment
	}

	markdown = figureBlockPattern.ReplaceAllStringFunc(markdown, strip)
	markdown = imgTagPattern.ReplaceAllStringFunc(markdown, strip)
	markdown = markdownImagePattern.ReplaceAllStringFunc(markdown, strip)
	if removed > 0 {
		markdown = blankRunPattern.ReplaceAllString(markdown, "\n\n")
	}
	return markdown, removed
}

// Unreferenced drops figures whose image markdown already embeds.
func Unreferenced(figs []types.Figure, markdown string) []types.Figure {
	refs := ReferencedFilenames(markdown)
	out := make([]types.Figure, 0, len(figs))
	for _, f := range figs {
		if !refs[f.Filename] {
			out = append(out, f)
		}
	}
	return out
}

// Prepare dedupes, sorts, classifies, and scores extracted figures.
func Prepare(figs []types.Figure, rules *Rules) []types.Figure {
	out := Dedupe(figs)
	Sort(out)
	for i := range out {
		out[i].Bucket = Classify(out[i])
		out[i].Score = rules.Score(out[i])
	}
	return out
}
