package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AssessmentLoader reads assessment content straight from Postgres with pgx.
// It backs the caching repositories when the service runs against Postgres.
type AssessmentLoader struct {
	pool *pgxpool.Pool
}

func NewAssessmentLoader(pool *pgxpool.Pool) *AssessmentLoader {
	return &AssessmentLoader{pool: pool}
}

func (l *AssessmentLoader) LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	var a domain.Assessment
	err := l.pool.QueryRow(ctx,
		`SELECT id, title, chapter_id, topic_id, passing_score, created_at FROM assessments WHERE id=$1`,
		assessmentID,
	).Scan(&a.ID, &a.Title, &a.ChapterID, &a.TopicID, &a.PassingScore, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assessment{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("load assessment: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, assessment_id, position, text, type, options, correct_answer
		   FROM questions WHERE assessment_id=$1 ORDER BY position, id`,
		assessmentID,
	)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	a.Questions = []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return domain.Assessment{}, err
		}
		a.Questions = append(a.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Assessment{}, fmt.Errorf("load questions: %w", err)
	}
	return a, nil
}

func (l *AssessmentLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT id, assessment_id, position, text, type, options, correct_answer FROM questions WHERE id=$1`,
		questionID,
	)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, err
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q       domain.Question
		qType   string
		options []byte
		correct string
	)
	if err := row.Scan(&q.ID, &q.AssessmentID, &q.Position, &q.Text, &qType, &options, &correct); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, err
		}
		return domain.Question{}, fmt.Errorf("scan question: %w", err)
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	q.Type = domain.QuestionType(qType)
	q.CorrectAnswer = json.RawMessage(correct)
	return q, nil
}
