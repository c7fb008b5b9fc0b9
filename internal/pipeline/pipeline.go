// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs documents through the digest pipeline:
// classify, acquire, parse, extract metadata, extract and score figures,
// render the digest, convert it to blocks, and persist it. Each document
// is one sequential run; RunBatch runs several concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-digest/internal/blocks"
	"github.com/pdiddy/paper-digest/internal/digest"
	"github.com/pdiddy/paper-digest/internal/extract"
	"github.com/pdiddy/paper-digest/internal/figures"
	"github.com/pdiddy/paper-digest/internal/ledger"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/parse"
	"github.com/pdiddy/paper-digest/internal/search"
	"github.com/pdiddy/paper-digest/internal/workspace"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const defaultConcurrency = 3

// errSkipped is returned by a stage that is disabled by configuration.
var errSkipped = errors.New("stage skipped")

// Persister writes a finished digest to the external store.
type Persister interface {
	Save(ctx context.Context, rec *types.PaperRecord, doc types.DigestDocument, blocks []types.Block) (types.Persisted, error)
}

// Arxiv is the bibliographic service: lookup by ID for enrichment and
// title search for locating a document.
type Arxiv interface {
	extract.Lookup
	SearchByTitle(ctx context.Context, title string) (search.ArxivEntry, error)
}

// Ledger records run history.
type Ledger interface {
	Start(ctx context.Context, inputURL string, kind types.SourceKind) (string, error)
	Finish(ctx context.Context, run ledger.Run) error
}

// ParseFunc reads a document's text and declared metadata.
type ParseFunc func(path string, cfg types.ParseConfig) (parse.Document, error)

// Pipeline holds the shared, read-only dependencies of every run. Only
// Generator and Renderer are required; a nil Figures skips figure
// extraction, a nil Persister skips persistence, a nil Images leaves
// local images as text placeholders.
type Pipeline struct {
	Config    types.Config
	Client    *http.Client
	Generator llm.Generator
	Arxiv     Arxiv
	Figures   figures.Extractor
	Rules     *figures.Rules
	Renderer  *digest.Renderer
	Images    blocks.ImageResolver
	Persister Persister
	Ledger    Ledger
	Logger    *slog.Logger

	// Parse defaults to parse.Parse.
	Parse ParseFunc

	locks workspace.Locker
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) layout() workspace.Layout {
	return workspace.New(p.Config.Pipeline.Root)
}

func (p *Pipeline) rules() *figures.Rules {
	if p.Rules != nil {
		return p.Rules
	}
	return figures.DefaultRules()
}

func (p *Pipeline) parse(path string) (parse.Document, error) {
	if p.Parse != nil {
		return p.Parse(path, p.Config.Parse)
	}
	return parse.Parse(path, p.Config.Parse)
}

func (p *Pipeline) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *Pipeline) lookup() extract.Lookup {
	if p.Arxiv == nil {
		return nil
	}
	return p.Arxiv
}

// RunBatch runs every input, at most Config.Pipeline.Concurrency at a
// time. Reports are returned in input order. A failed run never stops the
// others.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []string) []*RunReport {
	limit := p.Config.Pipeline.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	reports := make([]*RunReport, len(inputs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, input := range inputs {
		g.Go(func() error {
			reports[i] = p.Run(ctx, input)
			return nil
		})
	}
	g.Wait()
	return reports
}

// Run processes one input to completion and reports every stage. Stages
// run strictly in order; cancellation is observed between stages.
func (p *Pipeline) Run(ctx context.Context, input string) *RunReport {
	start := time.Now()
	input = strings.TrimSpace(input)
	desc := Describe(input)
	report := &RunReport{Input: input, Descriptor: desc}

	ledgered := false
	if p.Ledger != nil {
		id, err := p.Ledger.Start(ctx, input, desc.Kind)
		if err != nil {
			p.logger().Warn("ledger unavailable, run not recorded", "input", input, "error", err)
		} else {
			report.RunID, ledgered = id, true
		}
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	r := &run{
		p:      p,
		report: report,
		layout: p.layout(),
		logger: p.logger().With("run_id", report.RunID),
	}
	r.logger.Info("run started", "input", input, "kind", desc.Kind, "message", desc.Message)

	r.execute(ctx)
	r.release()
	report.Elapsed = time.Since(start)

	if ledgered {
		p.finishLedger(report, r.logger)
	}

	if err := report.Err(); err != nil {
		r.logger.Error("run failed", "error", err, "elapsed", report.Elapsed)
	} else {
		r.logger.Info("run finished",
			"title", report.title(),
			"warnings", len(report.Warnings()),
			"record_url", report.Persisted.RecordURL,
			"elapsed", report.Elapsed,
		)
	}
	return report
}

func (p *Pipeline) finishLedger(report *RunReport, logger *slog.Logger) {
	entry := ledger.Run{
		ID:          report.RunID,
		DigestPath:  report.Digest.OutputPath,
		RecordID:    report.Persisted.RecordID,
		RecordURL:   report.Persisted.RecordURL,
		FigureCount: len(report.Digest.Referenced),
		BlockCount:  len(report.Blocks),
		Truncated:   report.Truncated,
	}
	if report.Record != nil {
		entry.Title = report.Record.Title
		entry.SanitizedTitle = workspace.Sanitize(report.Record.Title)
	}
	if err := report.Err(); err != nil {
		entry.Error = err.Error()
	}
	// The run's own context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Ledger.Finish(ctx, entry); err != nil {
		logger.Warn("recording run outcome failed", "error", err)
	}
}

// run is the mutable state of one document run. It is never shared.
type run struct {
	p      *Pipeline
	report *RunReport
	layout workspace.Layout
	logger *slog.Logger

	rec *types.PaperRecord

	// docPath is the document being processed. owned is set when the
	// document was downloaded into the workspace and may be moved.
	docPath string
	owned   bool

	// dirTitle names the workspace directory holding the document and
	// its images; title is the title the run is serialized under.
	dirTitle string
	title    string
	unlock   func()

	eligible []types.Figure
}

// stage runs fn as stage, recording its outcome. It returns false when
// the run must stop.
func (r *run) stage(ctx context.Context, stage types.Stage, fatal bool, fn func(context.Context) error) bool {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		r.report.record(stage, start, err, true)
		return false
	}
	err := fn(ctx)
	if errors.Is(err, errSkipped) {
		r.report.skip(stage)
		return true
	}
	r.report.record(stage, start, err, fatal)
	if err != nil {
		if fatal {
			return false
		}
		r.logger.Warn("stage degraded, continuing", "stage", stage, "error", err)
	} else {
		r.logger.Debug("stage done", "stage", stage, "elapsed", time.Since(start))
	}
	return true
}

func (r *run) execute(ctx context.Context) {
	r.rec = types.NewPaperRecord(r.report.Input)
	r.report.Record = r.rec

	steps := []struct {
		stage types.Stage
		fatal bool
		fn    func(context.Context) error
	}{
		{types.StageAcquire, true, r.acquire},
		{types.StageParse, true, r.parse},
		{types.StageExtract, false, r.extract},
		{types.StageWorkspace, true, r.settle},
		{types.StageFigures, false, r.figures},
		{types.StageRender, true, r.render},
		{types.StageSerialize, false, r.serialize},
		{types.StagePersist, true, r.persist},
	}
	for _, s := range steps {
		if !r.stage(ctx, s.stage, s.fatal, s.fn) {
			return
		}
	}
}

func (r *run) parse(_ context.Context) error {
	doc, err := r.p.parse(r.docPath)
	if err != nil {
		return err
	}
	r.rec.RawText = doc.Text
	r.rec.Metadata = doc.Metadata
	r.logger.Info("document parsed",
		"pages", doc.Metadata.Pages,
		"chars", len([]rune(doc.Text)),
		"truncated", doc.Truncated,
	)
	return nil
}

func (r *run) extract(ctx context.Context) error {
	lookup := r.p.lookup()
	_, err := extract.ExtractMetadata(ctx, r.p.Generator, lookup, r.rec, r.logger)
	if err != nil && r.rec.ArxivID != "" && lookup != nil {
		// The identifier found while acquiring still allows enrichment.
		extract.Enrich(ctx, lookup, r.rec, r.logger)
	}
	return err
}

// settle takes the title lock and moves the document to its canonical
// location. From here until the run ends no other run touches the
// directory for this title.
func (r *run) settle(_ context.Context) error {
	r.title = r.rec.Title
	if r.rec.HasPlaceholderTitle() {
		r.title = r.dirTitle
		if !r.owned {
			r.title = strings.TrimSuffix(filepath.Base(r.docPath), filepath.Ext(r.docPath))
		}
	}
	unlock, ok := r.p.locks.TryLock(r.title)
	if !ok {
		r.logger.Info("waiting for title lock", "title", r.title)
		start := time.Now()
		unlock = r.p.locks.Lock(r.title)
		r.logger.Debug("title lock acquired", "title", r.title, "waited", time.Since(start))
	}
	r.unlock = unlock

	if !r.owned {
		r.dirTitle = r.title
	} else if workspace.Sanitize(r.title) != workspace.Sanitize(r.dirTitle) {
		r.relocate()
	}
	r.rec.DocumentPath = r.docPath

	if err := r.layout.Prepare(r.dirTitle); err != nil {
		return fmt.Errorf("preparing workspace: %w", err)
	}
	return nil
}

// relocate moves a downloaded document under r.title. A document already
// stored under that title is replaced: it is the same paper and the run
// holds the title lock. Failures keep the provisional location.
func (r *run) relocate() {
	dest, err := r.layout.Relocate(r.docPath, r.title)
	switch {
	case err == nil:
	case errors.Is(err, workspace.ErrDestinationExists):
		dest = r.layout.DocumentPath(r.title)
		if err := os.Rename(r.docPath, dest); err != nil {
			r.logger.Warn("relocation failed, keeping provisional location", "path", r.docPath, "error", err)
			return
		}
		os.RemoveAll(filepath.Dir(r.docPath))
		r.logger.Info("replaced previously stored document", "path", dest)
	default:
		r.logger.Warn("relocation failed, keeping provisional location", "path", r.docPath, "error", err)
		return
	}
	r.logger.Info("document relocated", "from", r.docPath, "to", dest)
	r.docPath = dest
	r.dirTitle = r.title
}

func (r *run) release() {
	if r.unlock != nil {
		r.unlock()
	}
}

func (r *run) figures(ctx context.Context) error {
	if r.p.Figures == nil || r.p.Config.Figures.Disabled {
		r.logger.Info("figure extraction disabled")
		return errSkipped
	}
	figs, err := r.p.Figures.Extract(ctx, r.docPath, r.layout.ImagesDir(r.dirTitle))
	if err != nil {
		return err
	}

	rules := r.p.rules()
	r.rec.Figures = figures.Prepare(figs, rules)
	r.eligible = rules.EligibleFigures(r.rec.Figures)
	r.logger.Info("figures scored", "candidates", len(r.rec.Figures), "eligible", len(r.eligible))
	return nil
}

func (r *run) render(ctx context.Context) error {
	renderer := *r.p.Renderer
	renderer.Logger = r.logger

	doc, err := renderer.Render(ctx, r.rec, r.eligible,
		workspace.RelativeImagesDir(r.dirTitle), r.layout.OutputPath(r.title))
	if err != nil {
		return err
	}
	r.report.Digest = doc
	return nil
}

func (r *run) serialize(ctx context.Context) error {
	conv := blocks.Converter{
		Resolver: r.p.Images,
		Locate:   r.layout.ResolveImage,
		Logger:   r.logger,
	}
	res := conv.Convert(ctx, r.report.Digest.Markdown)
	r.report.Blocks = res.Blocks
	r.report.Truncated = res.Truncated
	r.logger.Info("digest converted to blocks",
		"blocks", len(res.Blocks),
		"images", res.Images,
		"unresolved_images", res.Unresolved,
		"truncated", res.Truncated,
	)

	// Without an image store, placeholders are the expected rendering.
	lost := res.Unresolved
	if r.p.Images == nil {
		lost = 0
	}
	switch {
	case res.Truncated && lost > 0:
		return types.NewStageError(types.StageSerialize, types.ErrSerialize,
			fmt.Errorf("digest cut to %d blocks and %d of %d figures not uploaded", len(res.Blocks), lost, res.Images))
	case res.Truncated:
		return types.NewStageError(types.StageSerialize, types.ErrSerialize,
			fmt.Errorf("digest cut to %d blocks", len(res.Blocks)))
	case lost > 0:
		return types.NewStageError(types.StageSerialize, types.ErrSerialize,
			fmt.Errorf("%d of %d figures not uploaded", lost, res.Images))
	}
	return nil
}

func (r *run) persist(ctx context.Context) error {
	if r.p.Persister == nil || !r.p.Config.Pipeline.Persist {
		r.logger.Info("persistence disabled, digest kept locally", "path", r.report.Digest.OutputPath)
		return errSkipped
	}
	persisted, err := r.p.Persister.Save(ctx, r.rec, r.report.Digest, r.report.Blocks)
	if err != nil {
		return err
	}
	r.report.Persisted = persisted
	return nil
}
