package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/textscore/pkg/textscore"
	"github.com/cognicore/textscore/pkg/textscore/plugin"
	"github.com/cognicore/textscore/pkg/textscore/store"
	"github.com/cognicore/textscore/pkg/textscore/store/sqlite"
)

// defaultPathFlag is what an artifact flag holds when given without a value.
// No file path can contain NUL, so every real path stays a path.
const defaultPathFlag = "\x00"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score every row of a CSV file",
	Long: `Score every row of a CSV file against a mapping and write the results.

Artifact flags take an optional path; given bare they write next to the input
(or into [output] dir) as <name>.jsonl, <name>.aggregate.json and <name>.html.

Examples:
  textscore run -i lyrics.csv -m mapping.yaml --jsonl --aggregate
  textscore run -i lyrics.csv -m mapping.yaml --html=report.html
  textscore run -i posts.csv --plugin htmltext --workers 4 --db runs.db`,
	RunE: runRun,
}

var (
	runInput     string
	runMapping   string
	runJSONL     string
	runAggregate string
	runHTML      string
	runWorkers   int
	runEncoding  string
	runPlugins   []string
)

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&runInput, "input", "i", "", "input CSV file")
	f.StringVarP(&runMapping, "mapping", "m", "", "YAML mapping of categories and crossmap rules")
	f.StringVar(&runJSONL, "jsonl", "", "write per-row results as JSON lines")
	f.StringVar(&runAggregate, "aggregate", "", "write the dataset summary as JSON")
	f.StringVar(&runHTML, "html", "", "write an HTML report")
	for _, name := range []string{"jsonl", "aggregate", "html"} {
		f.Lookup(name).NoOptDefVal = defaultPathFlag
	}
	f.IntVar(&runWorkers, "workers", 0, "rows scored concurrently (default from config)")
	f.StringVar(&runEncoding, "encoding", "", "input text encoding (default utf-8)")
	f.StringSliceVar(&runPlugins, "plugin", nil,
		fmt.Sprintf("plugin applied before scoring, repeatable (available: %s)", strings.Join(plugin.Available(), ", ")))
	_ = cmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	engine, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer engine.Close()

	rep, err := engine.Run(ctx, runRequest())
	if err != nil {
		return err
	}
	return reportTable(cmd.OutOrStdout(), rep)
}

// newEngine builds the pipeline from flags, falling back to the run config.
func newEngine(ctx context.Context) (*textscore.Engine, error) {
	s := settings()

	names := runPlugins
	if len(names) == 0 {
		names = s.Plugins
	}
	chain, err := plugin.Resolve(names)
	if err != nil {
		return nil, err
	}

	workers := runWorkers
	if workers <= 0 {
		workers = s.Workers
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	return textscore.New(textscore.Options{
		Plugins: chain,
		Workers: workers,
		Store:   st,
		Logger:  currentLogger(),
	}), nil
}

func runRequest() textscore.RunRequest {
	s := settings()

	mappingPath := runMapping
	if mappingPath == "" {
		mappingPath = s.Mapping
	}
	encoding := runEncoding
	if encoding == "" {
		encoding = s.Encoding
	}

	return textscore.RunRequest{
		Input:       runInput,
		MappingPath: mappingPath,
		Encoding:    encoding,
		JSONL:       outputFlag(runJSONL),
		Aggregate:   outputFlag(runAggregate),
		HTML:        outputFlag(runHTML),
		OutputDir:   s.Output.Dir,
	}
}

func outputFlag(v string) textscore.Output {
	switch v {
	case "":
		return textscore.Output{}
	case defaultPathFlag:
		return textscore.Output{Enabled: true}
	default:
		return textscore.Output{Path: v}
	}
}

// openStore opens the configured run store. No path means no store.
func openStore(ctx context.Context) (store.Store, error) {
	path := dbPath
	if path == "" {
		path = settings().Database.Path
	}
	if path == "" {
		return nil, nil
	}
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return st, nil
}
