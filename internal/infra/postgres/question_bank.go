package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-session-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionBank loads the question pool from Postgres JSONB rows.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

func (b *QuestionBank) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `SELECT data FROM questions`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}
