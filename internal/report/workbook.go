package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/zombar/aidetector/internal/models"
)

// Sheet names
const (
	SummarySheet = "Summary"
	PhrasesSheet = "Phrases"
)

// Row is one analysed document in a workbook export
type Row struct {
	Source     string
	AnalyzedAt time.Time
	Result     models.AnalysisResult
}

var summaryHeaders = []string{
	"Source", "Analyzed At", "Verdict", "AI Probability", "Human Probability", "Confidence",
	"Words", "Sentences", "AI Indicators", "Perplexity", "Burstiness", "Entropy",
	"Vocabulary Richness", "Structure Uniformity", "Readability Consistency", "External Source",
}

var phraseHeaders = []string{"Source", "Phrase", "Category", "Count"}

// WriteWorkbook writes an XLSX with one summary row per document and one
// phrase row per detected phrase
func WriteWorkbook(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(PhrasesSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRow(f, SummarySheet, 1, toAny(summaryHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, PhrasesSheet, 1, toAny(phraseHeaders)); err != nil {
		return err
	}

	phraseRow := 2
	for i, r := range rows {
		res := r.Result
		external := ""
		if res.APIAnalysis != nil {
			external = res.APIAnalysis.Source
		}
		analyzedAt := ""
		if !r.AnalyzedAt.IsZero() {
			analyzedAt = r.AnalyzedAt.UTC().Format(time.RFC3339)
		}
		values := []any{
			r.Source, analyzedAt, res.Verdict, res.AIProbability, res.HumanProbability, res.Confidence,
			res.WordCount, res.SentenceCount, res.PhraseAnalysis.TotalMatches,
			res.Metrics.Perplexity, res.Metrics.Burstiness, res.Metrics.Entropy,
			res.Metrics.VocabRichness, res.Metrics.StructureUniformity, res.Metrics.ReadabilityConsistency,
			external,
		}
		if err := writeRow(f, SummarySheet, i+2, values); err != nil {
			return err
		}

		for _, p := range res.PhraseAnalysis.DetectedPhrases {
			if err := writeRow(f, PhrasesSheet, phraseRow, []any{r.Source, p.Phrase, p.Category, p.Count}); err != nil {
				return err
			}
			phraseRow++
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for c, v := range values {
		cell, err := excelize.CoordinatesToCellName(c+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
