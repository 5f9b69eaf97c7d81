package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/zombar/aidetector/internal/config"
	"github.com/zombar/aidetector/internal/models"
)

var aiSample = strings.Join([]string{
	"Furthermore, it is important to note that technology plays a crucial role in the development of modern education systems.",
	"Furthermore, it is important to note that teachers play a crucial role in the development of modern learning environments.",
	"Furthermore, it is important to note that students play a crucial role in the development of modern classroom communities.",
	"Furthermore, it is important to note that parents play a crucial role in the development of modern school partnerships.",
	"Furthermore, it is important to note that policy plays a crucial role in the development of modern national curricula.",
}, " ")

const humanSample = "Wow, total chaos! I couldn't find my keys this morning, so I ran back inside, " +
	"tore apart the couch cushions, and still missed the bus. Why does this always happen to me on Mondays?"

func testConfig() *config.Config {
	return &config.Config{
		LookupProvider:    config.ProviderNone,
		MinWords:          20,
		WorkerConcurrency: 1,
		LookupTimeout:     time.Second,
	}
}

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(testConfig(), strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestStdinMarkdown(t *testing.T) {
	out := execute(t, aiSample)

	assert.Contains(t, out, "AI Generated")
	assert.Contains(t, out, "**AI Probability:** 89%")
	assert.Contains(t, out, "### Highlighted Text")
}

func TestStdinJSON(t *testing.T) {
	out := execute(t, humanSample, "--json")

	var got fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "stdin", got.Source)
	assert.Equal(t, models.VerdictHumanWritten, got.Result.Verdict)
	assert.Equal(t, 31, got.Result.AIProbability)
	assert.Equal(t, 34, got.Result.WordCount)
}

func TestFilesJSON(t *testing.T) {
	dir := t.TempDir()
	aiPath := filepath.Join(dir, "essay.txt")
	humanPath := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(aiPath, []byte(aiSample+"\r\n"), 0o644))
	require.NoError(t, os.WriteFile(humanPath, []byte(humanSample), 0o644))

	out := execute(t, "", "--json", aiPath, humanPath)

	var got []fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, aiPath, got[0].Source)
	assert.Equal(t, models.VerdictAIGenerated, got[0].Result.Verdict)
	assert.Equal(t, 12, got[0].Result.PhraseAnalysis.TotalMatches)
	assert.Equal(t, models.VerdictHumanWritten, got[1].Result.Verdict)
}

func TestFilesMarkdownHeadings(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte(aiSample), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(humanSample), 0o644))

	out := execute(t, "", a, b)
	assert.Contains(t, out, "# "+a+"\n")
	assert.Contains(t, out, "# "+b+"\n")
	assert.Less(t, strings.Index(out, a), strings.Index(out, b))
}

func TestWorkbookOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	execute(t, aiSample, "--xlsx", path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "stdin", rows[1][0])
	assert.Equal(t, "AI Generated", rows[1][2])
}

func TestMissingFile(t *testing.T) {
	cmd := newRootCmd(testConfig(), strings.NewReader(""), &bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.txt")})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestUnknownLookup(t *testing.T) {
	cmd := newRootCmd(testConfig(), strings.NewReader(aiSample), &bytes.Buffer{})
	cmd.SetArgs([]string{"--lookup", "gpt"})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOOKUP_PROVIDER")
}
