// Package report renders detection results for people: Markdown, HTML and
// spreadsheet exports.
package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/models"
)

// MaxListedPhrases caps the detected pattern list; the rest are summarised
const MaxListedPhrases = 15

// Metric levels
const (
	LevelHigh   = "High"
	LevelMedium = "Medium"
	LevelLow    = "Low"
)

// MetricLevel buckets a 0-100 metric score
func MetricLevel(v int) string {
	switch {
	case v >= 70:
		return LevelHigh
	case v >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// SentenceMarker returns the prefix used for a sentence classification
func SentenceMarker(classification string) string {
	switch classification {
	case models.ClassificationAI:
		return "🔴"
	case models.ClassificationMixed:
		return "🟡"
	default:
		return "🟢"
	}
}

// Markdown renders a full human-readable report
func Markdown(result models.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s %s\n\n", result.VerdictEmoji, result.Verdict)
	fmt.Fprintf(&b, "**AI Probability:** %d%% | **Confidence:** %d%%\n\n", result.AIProbability, result.Confidence)

	b.WriteString("| | Probability |\n|---|---|\n")
	fmt.Fprintf(&b, "| ✅ Human Written | %d%% |\n", result.HumanProbability)
	fmt.Fprintf(&b, "| 🤖 AI Generated | %d%% |\n\n", result.AIProbability)

	writeMetrics(&b, result.Metrics)
	writePhrases(&b, result.PhraseAnalysis)

	if ext := result.APIAnalysis; ext != nil {
		b.WriteString("### External Assessment\n\n")
		if ext.Source != "" {
			fmt.Fprintf(&b, "_%s_: ", EscapeMarkdown(ext.Source))
		}
		fmt.Fprintf(&b, "%.0f%% AI", ext.OverallAIProbability)
		if ext.Assessment != "" {
			fmt.Fprintf(&b, ". %s", EscapeMarkdown(ext.Assessment))
		}
		b.WriteString("\n\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "**Words Analyzed:** %d | **Sentences:** %d | **AI Indicators:** %d\n\n",
		result.WordCount, result.SentenceCount, result.PhraseAnalysis.TotalMatches)

	writeHighlighted(&b, result)

	return b.String()
}

func writeMetrics(b *strings.Builder, m models.Metrics) {
	rows := []struct {
		label string
		value int
	}{
		{"Perplexity", m.Perplexity},
		{"Burstiness", m.Burstiness},
		{"Vocabulary Richness", m.VocabRichness},
		{"Structure Uniformity", m.StructureUniformity},
		{"Entropy", m.Entropy},
		{"Readability Consistency", m.ReadabilityConsistency},
	}

	b.WriteString("### Metrics\n\n| Metric | Score | Level |\n|---|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %d | %s |\n", r.label, r.value, MetricLevel(r.value))
	}
	b.WriteString("\n")
}

func writePhrases(b *strings.Builder, pa models.PhraseAnalysis) {
	if len(pa.DetectedPhrases) == 0 {
		return
	}

	fmt.Fprintf(b, "### 🎯 Detected AI Patterns (%d)\n\n", len(pa.DetectedPhrases))
	listed := pa.DetectedPhrases
	if len(listed) > MaxListedPhrases {
		listed = listed[:MaxListedPhrases]
	}
	items := make([]string, 0, len(listed)+1)
	for _, p := range listed {
		items = append(items, fmt.Sprintf("`%s` (%s)", p.Phrase, p.Category))
	}
	if extra := len(pa.DetectedPhrases) - len(listed); extra > 0 {
		items = append(items, fmt.Sprintf("+%d more", extra))
	}
	b.WriteString(strings.Join(items, ", "))
	b.WriteString("\n\n")

	if len(pa.CategoryScores) > 0 {
		cats := make([]string, 0, len(pa.CategoryScores))
		for c := range pa.CategoryScores {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		b.WriteString("| Category | Matches |\n|---|---|\n")
		for _, c := range cats {
			fmt.Fprintf(b, "| %s | %d |\n", c, pa.CategoryScores[c])
		}
		b.WriteString("\n")
	}
}

func writeHighlighted(b *strings.Builder, result models.AnalysisResult) {
	if len(result.SentenceAnalysis) == 0 {
		return
	}

	b.WriteString("### Highlighted Text\n\n")
	b.WriteString("🟢 Likely Human | 🟡 Possibly Mixed | 🔴 Likely AI | **bold** AI Pattern\n\n")

	re := phrasePattern(result.PhraseAnalysis.DetectedPhrases)
	parts := make([]string, 0, len(result.SentenceAnalysis))
	for _, s := range result.SentenceAnalysis {
		text := highlight(strings.TrimSpace(s.Text), re)
		parts = append(parts, SentenceMarker(s.Classification)+" "+text)
	}
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("\n")
}

// highlight escapes text and bolds every match of re
func highlight(text string, re *regexp.Regexp) string {
	if re == nil {
		return EscapeMarkdown(text)
	}
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		b.WriteString(EscapeMarkdown(text[last:loc[0]]))
		b.WriteString("**" + EscapeMarkdown(text[loc[0]:loc[1]]) + "**")
		last = loc[1]
	}
	b.WriteString(EscapeMarkdown(text[last:]))
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `>`, `\>`, `|`, `\|`, `~`, `\~`,
)

// EscapeMarkdown backslash-escapes characters that would start emphasis,
// links, code spans, raw HTML or table cells in user text.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// phrasePattern matches any detected phrase, asserting word boundaries only
// on word-character edges. Longer phrases come first so a phrase containing
// another wins.
func phrasePattern(phrases []models.PhraseMatch) *regexp.Regexp {
	if len(phrases) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(phrases))
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		key := strings.ToLower(p.Phrase)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		alts = append(alts, key)
	}
	if len(alts) == 0 {
		return nil
	}
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	for i, a := range alts {
		alts[i] = analyzer.PhraseExpr(a)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

// HTML renders the Markdown report as an HTML fragment. User text is escaped
// before rendering; raw HTML is dropped and only safe link schemes survive.
func HTML(result models.AnalysisResult) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML | html.Safelink})
	return markdown.ToHTML([]byte(Markdown(result)), p, renderer)
}
