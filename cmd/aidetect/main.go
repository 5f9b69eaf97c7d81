package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/config"
	"github.com/zombar/aidetector/internal/ingest"
	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/ollama"
	"github.com/zombar/aidetector/internal/openrouter"
	"github.com/zombar/aidetector/internal/report"
)

type options struct {
	jsonOutput bool
	xlsxPath   string
	clean      bool
	lookup     string
	minWords   int
}

type fileResult struct {
	Source string                `json:"source"`
	Result models.AnalysisResult `json:"result"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg, os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, stdin io.Reader, stdout io.Writer) *cobra.Command {
	opts := options{lookup: cfg.LookupProvider, minWords: cfg.MinWords}

	cmd := &cobra.Command{
		Use:   "aidetect [files...]",
		Short: "Estimate whether text was written by an AI",
		Long: `Analyze .txt, .md or .pdf files, or standard input when no file is given.

Example: aidetect essay.pdf notes.md --xlsx summary.xlsx`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.LookupProvider = opts.lookup
			cfg.MinWords = opts.minWords
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts, args, stdin, stdout)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON instead of Markdown")
	cmd.Flags().StringVar(&opts.xlsxPath, "xlsx", "", "Also write a summary workbook to this path")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "Drop captions, bylines and other boilerplate before scoring")
	cmd.Flags().StringVar(&opts.lookup, "lookup", opts.lookup, "External lookup: none, ollama or openrouter (env: LOOKUP_PROVIDER)")
	cmd.Flags().IntVar(&opts.minWords, "min-words", opts.minWords, "Warn when an input has fewer words (env: MIN_WORDS)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, opts options, paths []string, stdin io.Reader, stdout io.Writer) error {
	a, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	var cleaner *ingest.Cleaner
	if opts.clean {
		cleaner = ingest.NewCleaner(a.Lexicon())
	}

	inputs, err := readInputs(paths, stdin)
	if err != nil {
		return err
	}

	results := make([]fileResult, 0, len(inputs))
	for _, in := range inputs {
		text := in.text
		if cleaner != nil {
			text = cleaner.StripBoilerplate(ingest.Normalize(text))
		}
		if n := analyzer.WordCount(text); n < opts.minWords {
			slog.Warn("input is shorter than the recommended minimum, results may be unreliable",
				"source", in.source,
				"words", n,
				"min_words", opts.minWords,
			)
		}
		results = append(results, fileResult{Source: in.source, Result: a.Analyze(ctx, text)})
	}

	if err := printResults(stdout, results, opts.jsonOutput); err != nil {
		return err
	}

	if opts.xlsxPath != "" {
		if err := writeWorkbook(opts.xlsxPath, results); err != nil {
			return err
		}
	}
	return nil
}

type input struct {
	source string
	text   string
}

func readInputs(paths []string, stdin io.Reader) ([]input, error) {
	if len(paths) == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return []input{{source: "stdin", text: string(raw)}}, nil
	}

	inputs := make([]input, 0, len(paths))
	for _, p := range paths {
		text, err := ingest.ReadFile(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input{source: p, text: text})
	}
	return inputs, nil
}

func newAnalyzer(cfg *config.Config) (*analyzer.Analyzer, error) {
	switch cfg.LookupProvider {
	case config.ProviderOllama:
		client, err := ollama.New(cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			return nil, err
		}
		return analyzer.NewWithLookup(client.WithTimeout(cfg.LookupTimeout)), nil
	case config.ProviderOpenRouter:
		return analyzer.NewWithLookup(openrouter.New(cfg.OpenRouterURL, cfg.OpenRouterModel, cfg.OpenRouterAPIKey, cfg.LookupTimeout)), nil
	default:
		return analyzer.New(), nil
	}
}

func printResults(w io.Writer, results []fileResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}

	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "# %s\n\n", r.Source)
		}
		if _, err := io.WriteString(w, report.Markdown(r.Result)); err != nil {
			return err
		}
	}
	return nil
}

func writeWorkbook(path string, results []fileResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	defer f.Close()

	now := time.Now().UTC()
	rows := make([]report.Row, len(results))
	for i, r := range results {
		rows[i] = report.Row{Source: r.Source, AnalyzedAt: now, Result: r.Result}
	}

	if err := report.WriteWorkbook(f, rows); err != nil {
		return err
	}
	return f.Close()
}
