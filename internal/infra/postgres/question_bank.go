package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizquest-service/internal/domain"
)

// QuestionBank is the canonical question store: one JSONB row per question,
// with the filterable columns lifted out for indexing.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

// Questions returns the questions matching the filter; empty filter fields
// match everything. Malformed rows are rejected rather than served.
func (b *QuestionBank) Questions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	query := `SELECT data FROM questions WHERE 1=1`
	var args []any
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += fmt.Sprintf(` AND subject_id=$%d`, len(args))
	}
	if filter.ThemeID != "" {
		args = append(args, filter.ThemeID)
		query += fmt.Sprintf(` AND theme_id=$%d`, len(args))
	}
	if filter.Difficulty != "" {
		args = append(args, string(filter.Difficulty))
		query += fmt.Sprintf(` AND difficulty=$%d`, len(args))
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// LoadQuestions adapts the bank to the loader interface behind the caches.
func (b *QuestionBank) LoadQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	return b.Questions(ctx, filter)
}
