// Package textscore runs the scoring pipeline: rows of text are turned into
// features, scored against a mapping config, aggregated, and written out.
package textscore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/textscore/internal/csvload"
	"github.com/cognicore/textscore/pkg/textscore/aggregate"
	"github.com/cognicore/textscore/pkg/textscore/features"
	"github.com/cognicore/textscore/pkg/textscore/mapping"
	"github.com/cognicore/textscore/pkg/textscore/plugin"
	"github.com/cognicore/textscore/pkg/textscore/report"
	"github.com/cognicore/textscore/pkg/textscore/result"
	"github.com/cognicore/textscore/pkg/textscore/score"
	"github.com/cognicore/textscore/pkg/textscore/store"
)

// runIDs is shared so runs started by any engine in the process sort in
// start order.
var runIDs = store.NewIDs()

// Engine is the pipeline facade
type Engine struct {
	mapping *mapping.Config
	plugins plugin.Chain
	workers int
	store   store.Store
	ids     *store.IDs
	logger  *zap.Logger
	now     func() time.Time
}

// Options configures an Engine
type Options struct {
	// Mapping is used when a run does not name its own mapping file.
	Mapping *mapping.Config
	Plugins plugin.Chain
	// Workers > 1 scores rows concurrently; output is identical either way.
	Workers int
	// Store, when set, receives every run and its results.
	Store  store.Store
	Logger *zap.Logger
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	e := &Engine{
		mapping: opts.Mapping,
		plugins: opts.Plugins,
		workers: opts.Workers,
		store:   opts.Store,
		ids:     runIDs,
		logger:  opts.Logger,
		now:     time.Now,
	}
	if e.mapping == nil {
		e.mapping = mapping.New()
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Close releases the store, if any
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Process scores texts against the engine's mapping.
func (e *Engine) Process(ctx context.Context, texts []string) ([]result.Result, error) {
	return e.ProcessWith(ctx, e.mapping, texts)
}

// ProcessWith scores texts against cfg. Result i belongs to texts[i] and
// carries ID i. Plugins are fitted on all texts first.
func (e *Engine) ProcessWith(ctx context.Context, cfg *mapping.Config, texts []string) ([]result.Result, error) {
	if len(e.plugins) > 0 {
		if err := e.plugins.Fit(ctx, texts); err != nil {
			return nil, err
		}
		e.logger.Debug("plugins fitted", zap.Strings("plugins", e.plugins.Names()), zap.Int("rows", len(texts)))
	}

	results := make([]result.Result, len(texts))

	if e.workers == 1 {
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = e.scoreRow(cfg, i, text)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, text := range texts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.scoreRow(cfg, i, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) scoreRow(cfg *mapping.Config, id int, text string) result.Result {
	f := features.Extract(e.plugins.Transform(text))
	return result.New(id, text, f, score.Compute(f.Words, cfg))
}

// Output requests one artifact. Path wins over the default location.
type Output struct {
	Enabled bool
	Path    string
}

// Artifact names a file the run wrote.
type Artifact struct {
	Kind string
	Path string
}

// RunRequest describes one pipeline run over a CSV file
type RunRequest struct {
	Input string
	// MappingPath overrides the engine mapping for this run.
	MappingPath string
	Encoding    string

	JSONL     Output
	Aggregate Output
	HTML      Output
	// OutputDir replaces the input's directory for default artifact paths.
	OutputDir string
}

// RunReport is what a run produced
type RunReport struct {
	RunID     string
	Results   []result.Result
	Summary   aggregate.Summary
	Artifacts []Artifact
}

// Run loads the input, scores every row, and writes the requested artifacts.
// A missing input or an unreadable mapping file fails the run before any
// row is processed.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	cfg := e.mapping
	if req.MappingPath != "" {
		loaded, err := mapping.Loader{Logger: e.logger}.Load(req.MappingPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	rows, err := csvload.Load(req.Input, csvload.Options{Encoding: req.Encoding, Logger: e.logger})
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.Text
	}

	start := e.now()
	results, err := e.ProcessWith(ctx, cfg, texts)
	if err != nil {
		return nil, err
	}
	rep := &RunReport{
		Results: results,
		Summary: aggregate.Aggregate(results),
	}
	e.logger.Info("rows scored",
		zap.String("input", req.Input),
		zap.Int("rows", len(results)),
		zap.Int("categories", len(cfg.Categories())),
		zap.Duration("elapsed", e.now().Sub(start)))

	if err := e.writeArtifacts(req, rep); err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.persist(ctx, req, start, rep); err != nil {
			return nil, err
		}
	}

	return rep, nil
}

func (e *Engine) writeArtifacts(req RunRequest, rep *RunReport) error {
	baseDir := req.OutputDir
	if baseDir == "" {
		abs, err := filepath.Abs(req.Input)
		if err != nil {
			return err
		}
		baseDir = filepath.Dir(abs)
	} else if err := os.MkdirAll(baseDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	baseName := strings.TrimSuffix(filepath.Base(req.Input), filepath.Ext(req.Input))

	outputs := []struct {
		kind   string
		out    Output
		suffix string
		write  func(io.Writer) error
	}{
		{"jsonl", req.JSONL, ".jsonl", func(w io.Writer) error { return report.WriteJSONL(w, rep.Results) }},
		{"aggregate", req.Aggregate, ".aggregate.json", func(w io.Writer) error { return report.WriteSummary(w, rep.Summary) }},
		{"html", req.HTML, ".html", func(w io.Writer) error { return report.RenderHTML(w, rep.Results) }},
	}

	for _, o := range outputs {
		path := o.out.Path
		if path == "" {
			if !o.out.Enabled {
				continue
			}
			path = filepath.Join(baseDir, baseName+o.suffix)
		}
		if err := writeFile(path, o.write); err != nil {
			return fmt.Errorf("write %s: %w", o.kind, err)
		}
		rep.Artifacts = append(rep.Artifacts, Artifact{Kind: o.kind, Path: path})
		e.logger.Info("artifact written", zap.String("kind", o.kind), zap.String("path", path))
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, req RunRequest, start time.Time, rep *RunReport) error {
	run := store.Run{
		ID:        e.ids.Next(start),
		Input:     req.Input,
		Mapping:   req.MappingPath,
		Plugins:   e.plugins.Names(),
		CreatedAt: start,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	if err := e.store.AppendResults(ctx, run.ID, rep.Results); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	rep.RunID = run.ID
	e.logger.Info("run stored", zap.String("run_id", run.ID), zap.Int("rows", len(rep.Results)))
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Summarize recomputes the summary of a stored run.
func Summarize(ctx context.Context, st store.Store, runID string) (aggregate.Summary, error) {
	results, err := st.Results(ctx, runID)
	if err != nil {
		return aggregate.Summary{}, err
	}
	return aggregate.Aggregate(results), nil
}
