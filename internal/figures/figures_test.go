// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package figures

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/container"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const toolJSON = `[
  {"name": "1", "figType": "Figure", "page": 1, "caption": "Figure 1: Overview of the proposed framework.", "renderURL": "/out/paper-Figure1-1.png"},
  {"name": "1", "figType": "Table", "page": 5, "caption": "Table 1: Comparison with state-of-the-art methods.", "renderURL": "/out/paper-Table1-1.png"},
  {"name": "1", "figType": "Figure", "page": 2, "caption": "duplicate", "renderURL": "/out/paper-Figure1-2.png"},
  {"name": "2", "figType": "Figure", "page": 3, "caption": "no image"}
]`

func fig(typ types.FigureType, number, caption string) types.Figure {
	return types.Figure{Type: typ, Number: number, Caption: caption, Filename: string(typ) + number + ".png"}
}

func TestReadOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.json"), []byte(toolJSON), 0o644))

	figs, err := readOutput(dir, "/docs/paper.pdf")
	require.NoError(t, err)
	require.Len(t, figs, 2, "duplicates and records without images are dropped")

	assert.Equal(t, types.TypeFigure, figs[0].Type)
	assert.Equal(t, "1", figs[0].Number)
	assert.Equal(t, "paper-Figure1-1.png", figs[0].Filename)
	assert.Equal(t, 2, figs[0].Page, "pages are 1-based")
	assert.Equal(t, "pdffigures2", figs[0].Source)
	assert.Equal(t, types.TypeTable, figs[1].Type)
}

func TestReadOutput_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := readOutput(dir, "missing.pdf")
	assert.ErrorIs(t, err, types.ErrFigureEngine)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))
	_, err = readOutput(dir, "bad.pdf")
	assert.ErrorIs(t, err, types.ErrFigureEngine)
}

func TestDedupeFirstWins(t *testing.T) {
	figs := Dedupe([]types.Figure{
		fig(types.TypeFigure, "1", "first"),
		fig(types.TypeTable, "1", "table"),
		fig(types.TypeFigure, "1", "second"),
	})
	require.Len(t, figs, 2)
	assert.Equal(t, "first", figs[0].Caption)
}

// fakeRuntime records the spec it ran and writes extractor output.
type fakeRuntime struct {
	spec      container.RunSpec
	outputDir string
	runErr    error
	noImage   bool
}

func (f *fakeRuntime) Name() string { return "fake" }
func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	if f.noImage {
		return errors.New("image " + image + " not found")
	}
	return nil
}

func (f *fakeRuntime) Run(_ context.Context, spec container.RunSpec) error {
	f.spec = spec
	if f.runErr != nil {
		if spec.Stderr != nil {
			io.WriteString(spec.Stderr, "java.lang.OutOfMemoryError")
		}
		return f.runErr
	}
	return os.WriteFile(filepath.Join(f.outputDir, "paper.json"), []byte(toolJSON), 0o644)
}

func TestContainerExtractor(t *testing.T) {
	root := t.TempDir()
	pdf := filepath.Join(root, "paper.pdf")
	images := filepath.Join(root, "extracted_images")
	rt := &fakeRuntime{outputDir: images}

	ex := &ContainerExtractor{Image: "pdffigures2:latest", Runtime: rt}
	figs, err := ex.Extract(context.Background(), pdf, images)
	require.NoError(t, err)
	assert.Len(t, figs, 2)

	assert.Equal(t, "pdffigures2:latest", rt.spec.Image)
	require.Len(t, rt.spec.Mounts, 2)
	assert.Equal(t, root, rt.spec.Mounts[0].Source)
	assert.True(t, rt.spec.Mounts[0].ReadOnly)
	assert.Equal(t, images, rt.spec.Mounts[1].Source)
	assert.Equal(t, []string{"/in/paper.pdf", "-m", "/out/", "-d", "/out/"}, rt.spec.Args)
	assert.Equal(t, hostUser(), rt.spec.User)
}

func TestContainerExtractor_Failures(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name string
		rt   *fakeRuntime
		want string
	}{
		{"missing image", &fakeRuntime{noImage: true}, "not found"},
		{"run failure", &fakeRuntime{runErr: errors.New("exit status 1")}, "OutOfMemoryError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &ContainerExtractor{Image: "img", Runtime: tt.rt}
			_, err := ex.Extract(context.Background(), filepath.Join(root, "paper.pdf"), filepath.Join(root, "img"))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrFigureEngine)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBinaryExtractor(t *testing.T) {
	images := t.TempDir()
	var gotName string
	var gotArgs []string

	orig := runCommand
	t.Cleanup(func() { runCommand = orig })
	runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, os.WriteFile(filepath.Join(images, "paper.json"), []byte(toolJSON), 0o644)
	}

	ex := &BinaryExtractor{Binary: "pdffigures2"}
	figs, err := ex.Extract(context.Background(), "/docs/paper.pdf", images)
	require.NoError(t, err)
	assert.Len(t, figs, 2)
	assert.Equal(t, "pdffigures2", gotName)
	assert.Equal(t, "/docs/paper.pdf", gotArgs[0])
}

func TestBinaryExtractor_Failure(t *testing.T) {
	orig := runCommand
	t.Cleanup(func() { runCommand = orig })
	runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("command not found"), errors.New("exit status 127")
	}

	_, err := (&BinaryExtractor{Binary: "pdffigures2"}).Extract(context.Background(), "x.pdf", t.TempDir())
	assert.ErrorIs(t, err, types.ErrFigureEngine)
}

func TestNewExtractor(t *testing.T) {
	ex, err := NewExtractor(types.FiguresConfig{Extractor: "binary", Binary: "/opt/pdffigures2"})
	require.NoError(t, err)
	assert.IsType(t, &BinaryExtractor{}, ex)

	ex, err = NewExtractor(types.FiguresConfig{Image: "img"})
	require.NoError(t, err)
	assert.IsType(t, &ContainerExtractor{}, ex)

	_, err = NewExtractor(types.FiguresConfig{Extractor: "magic"})
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short\n"))

	// 3-byte runes put the byte cut inside a character.
	long := strings.Repeat("错", 200) + "xy"
	got := tail(long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "错xy"))
	assert.LessOrEqual(t, len(got), len("...")+400)
}

func TestSort(t *testing.T) {
	figs := []types.Figure{
		fig(types.TypeTable, "2", ""),
		fig(types.TypeFigure, "A1", ""),
		fig(types.TypeFigure, "10", ""),
		fig(types.TypeTable, "1", ""),
		fig(types.TypeFigure, "2", ""),
	}
	Sort(figs)

	var got []string
	for _, f := range figs {
		got = append(got, f.Label())
	}
	assert.Equal(t, []string{"Figure 2", "Figure 10", "Figure A1", "Table 1", "Table 2"}, got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		fig  types.Figure
		want types.Bucket
	}{
		{"first figure", fig(types.TypeFigure, "1", "Teaser."), types.BucketMethod},
		{"second figure", fig(types.TypeFigure, "2", "Samples."), types.BucketMethod},
		{"method caption", fig(types.TypeFigure, "5", "The attention Mechanism in detail."), types.BucketMethod},
		{"experiment caption", fig(types.TypeFigure, "4", "Training curves on CIFAR."), types.BucketExperiment},
		{"table", fig(types.TypeTable, "3", "Hyperparameters."), types.BucketExperiment},
		{"method caption on table", fig(types.TypeTable, "3", "Framework components."), types.BucketMethod},
		{"other", fig(types.TypeFigure, "6", "Qualitative samples."), types.BucketOther},
		{"non-numeric", fig(types.TypeFigure, "A1", "Extra samples."), types.BucketOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.fig))
		})
	}
}

func TestReferencedFilenames(t *testing.T) {
	md := `Intro
<figure>
  <img src="../documents/X/extracted_images/X-Figure1-1.png" alt="Figure 1">
</figure>
![Table 1](../documents/X/extracted_images/X-Table1-1.png)
<img alt="bare" src="plain.png">`

	refs := ReferencedFilenames(md)
	assert.True(t, refs["X-Figure1-1.png"])
	assert.True(t, refs["X-Table1-1.png"])
	assert.True(t, refs["plain.png"])
	assert.Len(t, refs, 3)
}

func TestStripIneligible(t *testing.T) {
	keep := []types.Figure{{Filename: "X-Figure1-1.png"}}
	md := "## 方法\n\n如图1所示：\n\n" +
		"<figure>\n  <img src=\"../documents/X/extracted_images/X-Figure1-1.png\" alt=\"Figure 1\">\n</figure>\n\n" +
		"如图2所示：\n\n" +
		"<figure>\n  <img src=\"../documents/X/extracted_images/X-Table9-1.png\" alt=\"Table 9\">\n  <figcaption>Statistics.</figcaption>\n</figure>\n\n" +
		"Inline <img src=\"made-up.png\"> and ![t](../extracted_images/other.png) here.\n"

	out, removed := StripIneligible(md, keep)
	assert.Equal(t, 3, removed)
	assert.Contains(t, out, "X-Figure1-1.png")
	assert.NotContains(t, out, "X-Table9-1.png")
	assert.NotContains(t, out, "Statistics.")
	assert.NotContains(t, out, "made-up.png")
	assert.NotContains(t, out, "other.png")
	assert.NotContains(t, out, "\n\n\n")
	assert.Equal(t, 1, CountFigures(out))

	same, removed := StripIneligible(out, keep)
	assert.Zero(t, removed)
	assert.Equal(t, out, same)
}

func TestScoreBounds(t *testing.T) {
	rules := DefaultRules()
	captions := []string{
		"",
		strings.Repeat("architecture comparison ablation ", 40),
		"Overview of the proposed framework",
	}
	for _, typ := range []types.FigureType{types.TypeFigure, types.TypeTable} {
		for _, num := range []string{"1", "7", "B"} {
			for _, c := range captions {
				s := rules.Score(fig(typ, num, c))
				assert.True(t, s.Method >= 0 && s.Method <= 4, "method %d", s.Method)
				assert.True(t, s.Experiment >= 0 && s.Experiment <= 4, "experiment %d", s.Experiment)
				assert.True(t, s.Density >= 0 && s.Density <= 2, "density %d", s.Density)
				assert.True(t, s.Total() >= 0 && s.Total() <= 10)
			}
		}
	}
}

func TestScoreExamples(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name     string
		fig      types.Figure
		eligible bool
	}{
		{"architecture figure", fig(types.TypeFigure, "2", "Overview of the proposed framework. The encoder maps inputs to latent codes."), true},
		{"main comparison table", fig(types.TypeTable, "1", "Comparison with state-of-the-art methods on ImageNet."), true},
		{"behavior statistics table", fig(types.TypeTable, "4", "Statistics of agent behaviors."), false},
		{"training curve", fig(types.TypeFigure, "6", "Training curves."), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.fig
			f.Score = rules.Score(f)
			assert.Equal(t, tt.eligible, rules.Eligible(f), "score %+v", f.Score)
		})
	}
}

func TestEligibleFigures(t *testing.T) {
	rules := DefaultRules()
	figs := []types.Figure{
		{Number: "1", Score: types.Score{Method: 4, Experiment: 2, Density: 2}},
		{Number: "2", Score: types.Score{Method: 2, Experiment: 4, Density: 2}},
		{Number: "3", Score: types.Score{Method: 1, Experiment: 2, Density: 1}},
	}
	got := rules.EligibleFigures(figs)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Number)
	assert.Equal(t, "2", got[1].Number)
}

func TestLoadRules(t *testing.T) {
	r, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, r.Threshold)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold: 5\nmethod:\n  max: 9\n"), 0o644))
	r, err = LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 5, r.Threshold)
	assert.Equal(t, maxMethod, r.Method.Max, "max is capped")
	assert.NotEmpty(t, r.Experiment.Terms, "unset sections keep built-in rules")

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPrepare(t *testing.T) {
	figs := Prepare([]types.Figure{
		fig(types.TypeTable, "1", "Comparison with state-of-the-art methods on ImageNet."),
		fig(types.TypeFigure, "1", "Overview of the proposed framework."),
		fig(types.TypeFigure, "1", "dup"),
	}, DefaultRules())

	require.Len(t, figs, 2)
	assert.Equal(t, "Figure 1", figs[0].Label())
	assert.Equal(t, types.BucketMethod, figs[0].Bucket)
	assert.Equal(t, types.BucketExperiment, figs[1].Bucket)
	assert.Positive(t, figs[1].Score.Total())
}
