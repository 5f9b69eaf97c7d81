package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zombar/aidetector/internal/models"
)

type analysisRow struct {
	ID            string    `db:"id"`
	Text          string    `db:"text"`
	Source        string    `db:"source"`
	Verdict       string    `db:"verdict"`
	AIProbability int       `db:"ai_probability"`
	WordCount     int       `db:"word_count"`
	Result        string    `db:"result"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r analysisRow) toModel() (*models.Analysis, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(r.Result), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &models.Analysis{
		ID:        r.ID,
		Text:      r.Text,
		Source:    r.Source,
		Result:    result,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func toModels(rows []analysisRow) ([]*models.Analysis, error) {
	analyses := make([]*models.Analysis, 0, len(rows))
	for _, row := range rows {
		a, err := row.toModel()
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

const selectAnalysis = `SELECT id, text, source, verdict, ai_probability, word_count, result, created_at, updated_at FROM analyses`

// SaveAnalysis stores an analysis and its detected phrases. Saving an existing
// ID replaces it.
func (db *DB) SaveAnalysis(analysis *models.Analysis) error {
	resultJSON, err := json.Marshal(analysis.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	now := time.Now().UTC()
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = now
	}
	if analysis.UpdatedAt.IsZero() {
		analysis.UpdatedAt = analysis.CreatedAt
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(tx.Rebind(`DELETE FROM detected_phrases WHERE analysis_id = ?`), analysis.ID); err != nil {
		return fmt.Errorf("failed to clear phrases: %w", err)
	}
	if _, err := tx.Exec(tx.Rebind(`DELETE FROM analyses WHERE id = ?`), analysis.ID); err != nil {
		return fmt.Errorf("failed to replace analysis: %w", err)
	}

	_, err = tx.Exec(tx.Rebind(`
		INSERT INTO analyses (id, text, source, verdict, ai_probability, word_count, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), analysis.ID, analysis.Text, analysis.Source, analysis.Result.Verdict, analysis.Result.AIProbability,
		analysis.Result.WordCount, string(resultJSON), analysis.CreatedAt.UTC(), analysis.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	for _, p := range analysis.Result.PhraseAnalysis.DetectedPhrases {
		_, err = tx.Exec(tx.Rebind(`
			INSERT INTO detected_phrases (analysis_id, phrase, category, count)
			VALUES (?, ?, ?, ?)
		`), analysis.ID, p.Phrase, p.Category, p.Count)
		if err != nil {
			return fmt.Errorf("failed to insert phrase: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAnalysis retrieves an analysis by ID
func (db *DB) GetAnalysis(id string) (*models.Analysis, error) {
	var row analysisRow
	err := db.conn.Get(&row, db.conn.Rebind(selectAnalysis+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return row.toModel()
}

// ListAnalyses retrieves analyses newest first
func (db *DB) ListAnalyses(limit, offset int) ([]*models.Analysis, error) {
	var rows []analysisRow
	err := db.conn.Select(&rows, db.conn.Rebind(selectAnalysis+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	return toModels(rows)
}

// GetAnalysesByVerdict retrieves analyses with the given verdict label
func (db *DB) GetAnalysesByVerdict(verdict string) ([]*models.Analysis, error) {
	var rows []analysisRow
	err := db.conn.Select(&rows, db.conn.Rebind(selectAnalysis+` WHERE verdict = ? ORDER BY created_at DESC, id`), verdict)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses by verdict: %w", err)
	}
	return toModels(rows)
}

// GetAnalysesByPhrase retrieves analyses in which the lexicon phrase was
// detected
func (db *DB) GetAnalysesByPhrase(phrase string) ([]*models.Analysis, error) {
	var rows []analysisRow
	err := db.conn.Select(&rows, db.conn.Rebind(selectAnalysis+`
		WHERE id IN (SELECT analysis_id FROM detected_phrases WHERE phrase = ?)
		ORDER BY created_at DESC, id
	`), strings.ToLower(strings.TrimSpace(phrase)))
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses by phrase: %w", err)
	}
	return toModels(rows)
}

// PhraseCount is a lexicon phrase with its total occurrences across analyses
type PhraseCount struct {
	Phrase   string `db:"phrase" json:"phrase"`
	Category string `db:"category" json:"category"`
	Total    int    `db:"total" json:"total"`
}

// TopPhrases returns the most frequently detected phrases
func (db *DB) TopPhrases(limit int) ([]PhraseCount, error) {
	var counts []PhraseCount
	err := db.conn.Select(&counts, db.conn.Rebind(`
		SELECT phrase, category, SUM(count) AS total
		FROM detected_phrases
		GROUP BY phrase, category
		ORDER BY total DESC, phrase
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top phrases: %w", err)
	}
	return counts, nil
}

// CountByVerdict returns the number of stored analyses per verdict
func (db *DB) CountByVerdict() (map[string]int, error) {
	var rows []struct {
		Verdict string `db:"verdict"`
		Total   int    `db:"total"`
	}
	if err := db.conn.Select(&rows, `SELECT verdict, COUNT(*) AS total FROM analyses GROUP BY verdict`); err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Verdict] = r.Total
	}
	return counts, nil
}

// DeleteAnalysis deletes an analysis by ID
func (db *DB) DeleteAnalysis(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(tx.Rebind("DELETE FROM detected_phrases WHERE analysis_id = ?"), id); err != nil {
		return fmt.Errorf("failed to delete phrases: %w", err)
	}
	result, err := tx.Exec(tx.Rebind("DELETE FROM analyses WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
