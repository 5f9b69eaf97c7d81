package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombar/aidetector/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// MinWords is the smallest input callers should submit. The analyzer itself
// accepts shorter text and falls back to neutral metric defaults.
const MinWords = 20

// Lookup obtains an external model's opinion of a text. Implementations own
// their timeouts; any error is treated as "no external signal".
type Lookup interface {
	DetectAIContent(ctx context.Context, text string) (*models.ExternalAnalysis, error)
}

// Analyzer performs AI-generated text detection
type Analyzer struct {
	lexicon *Lexicon
	weights Weights
	lookup  Lookup
	logger  *slog.Logger
}

// New creates an Analyzer that only uses local heuristics
func New() *Analyzer {
	return &Analyzer{
		lexicon: DefaultLexicon(),
		weights: DefaultWeights(),
		logger:  slog.Default().With("component", "analyzer"),
	}
}

// NewWithLookup creates an Analyzer that blends in an external model's score
func NewWithLookup(lookup Lookup) *Analyzer {
	a := New()
	a.lookup = lookup
	return a
}

// Lexicon returns the analyzer's phrase lexicon
func (a *Analyzer) Lexicon() *Lexicon {
	return a.lexicon
}

// HasLookup reports whether an external lookup is configured
func (a *Analyzer) HasLookup() bool {
	return a.lookup != nil
}

// Analyze scores text. Local metrics, sentence classification and the
// external lookup run concurrently and are joined before combination; a
// failed lookup only removes the external signal.
func (a *Analyzer) Analyze(ctx context.Context, text string) models.AnalysisResult {
	ctx, span := otel.Tracer("aidetector").Start(ctx, "analyzer.analyze")
	defer span.End()
	start := time.Now()

	doc := NewDocument(text)

	var (
		g         errgroup.Group
		metrics   localMetrics
		sentences []models.SentenceVerdict
		external  *models.ExternalAnalysis
	)

	g.Go(func() error {
		metrics = computeLocalMetrics(doc, a.lexicon)
		return nil
	})
	g.Go(func() error {
		sentences = classifySentences(doc.Sentences, a.lexicon)
		return nil
	})
	if a.lookup != nil {
		g.Go(func() error {
			var err error
			external, err = a.externalAnalysis(ctx, text)
			return err
		})
	}
	// Only the lookup can fail, and the local goroutines always run to completion
	if err := g.Wait(); err != nil {
		external = nil
		a.logger.Warn("external lookup failed, using local metrics only", "error", err)
	}

	result := combine(a.weights, metrics, sentences, external)

	span.SetAttributes(
		attribute.Int("text.words", result.WordCount),
		attribute.Int("text.sentences", result.SentenceCount),
		attribute.Int("detection.ai_probability", result.AIProbability),
		attribute.String("detection.verdict", result.Verdict),
		attribute.Bool("detection.external", external != nil),
	)
	a.logger.Debug("analysis complete",
		"words", result.WordCount,
		"ai_probability", result.AIProbability,
		"verdict", result.Verdict,
		"external", external != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// externalAnalysis calls the lookup, turning panics and unusable results
// into errors
func (a *Analyzer) externalAnalysis(ctx context.Context, text string) (result *models.ExternalAnalysis, err error) {
	ctx, span := otel.Tracer("aidetector").Start(ctx, "analyzer.external_lookup")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("external lookup panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	ext, err := a.lookup.DetectAIContent(ctx, text)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, errors.New("external lookup returned no result")
	}
	if ext.OverallAIProbability < 0 || ext.OverallAIProbability > 100 {
		return nil, fmt.Errorf("external AI probability out of range: %v", ext.OverallAIProbability)
	}
	return ext, nil
}
