package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store keeps assessments, submissions and answers in Postgres or SQLite.
// It implements app.SubmissionRepository, app.AssessmentCatalog and the loader
// interface of the caching repositories.
type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// SaveAssessment upserts an assessment and replaces its questions. Questions missing
// from a are deleted unless answers reference them, which yields ErrQuestionInUse.
func (s *Store) SaveAssessment(ctx context.Context, a domain.Assessment) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(newAssessmentRow(a)).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("chapter_id = EXCLUDED.chapter_id").
			Set("topic_id = EXCLUDED.topic_id").
			Set("passing_score = EXCLUDED.passing_score").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("save assessment: %w", err)
		}

		ids := make([]string, 0, len(a.Questions))
		for _, q := range a.Questions {
			ids = append(ids, q.ID)
		}
		del := tx.NewDelete().Model((*questionRow)(nil)).Where("assessment_id = ?", a.ID)
		if len(ids) > 0 {
			del = del.Where("id NOT IN (?)", bun.In(ids))
		}
		if _, err := del.Exec(ctx); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrQuestionInUse
			}
			return fmt.Errorf("remove dropped questions: %w", err)
		}
		if len(a.Questions) == 0 {
			return nil
		}

		rows := make([]questionRow, 0, len(a.Questions))
		for i, q := range a.Questions {
			rows = append(rows, newQuestionRow(a.ID, i, q))
		}
		_, err = tx.NewInsert().Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("assessment_id = EXCLUDED.assessment_id").
			Set("position = EXCLUDED.position").
			Set("text = EXCLUDED.text").
			Set("type = EXCLUDED.type").
			Set("options = EXCLUDED.options").
			Set("correct_answer = EXCLUDED.correct_answer").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("save questions: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	var row assessmentRow
	err := s.db.NewSelect().Model(&row).Where("a.id = ?", assessmentID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assessment{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("load assessment: %w", err)
	}
	var questions []questionRow
	err = s.db.NewSelect().Model(&questions).
		Where("q.assessment_id = ?", assessmentID).
		Order("q.position ASC", "q.id ASC").
		Scan(ctx)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("load questions: %w", err)
	}
	return row.toDomain(questions), nil
}

func (s *Store) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().Model(&row).Where("q.id = ?", questionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAssessments(ctx context.Context, filter domain.AssessmentFilter) ([]domain.AssessmentSummary, error) {
	var rows []assessmentRow
	q := s.db.NewSelect().Model(&rows).
		ColumnExpr("a.*").
		ColumnExpr("(SELECT COUNT(*) FROM questions AS q WHERE q.assessment_id = a.id) AS question_count").
		Order("a.id ASC")
	if filter.ChapterID != "" {
		q = q.Where("a.chapter_id = ?", filter.ChapterID)
	}
	if filter.TopicID != "" {
		q = q.Where("a.topic_id = ?", filter.TopicID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	out := make([]domain.AssessmentSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.summary())
	}
	return out, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission) error {
	_, err := s.db.NewInsert().Model(newSubmissionRow(sub)).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrAttemptInProgress
	}
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error) {
	row, err := s.selectSubmission(ctx, s.db, submissionID, "")
	if err != nil {
		return domain.Submission{}, err
	}
	return row.toDomain(), nil
}

// InsertAnswer stores an answer while holding a shared lock on its submission, so it
// cannot interleave with finalization.
func (s *Store) InsertAnswer(ctx context.Context, answer domain.Answer) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		sub, err := s.selectSubmission(ctx, tx, answer.SubmissionID, "SHARE")
		if err != nil {
			return err
		}
		if sub.Status == string(domain.StatusSubmitted) {
			return domain.ErrAlreadySubmitted
		}
		_, err = tx.NewInsert().Model(newAnswerRow(answer)).Exec(ctx)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAnswer
		}
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
		return nil
	})
}

func (s *Store) ListAnswers(ctx context.Context, submissionID string) ([]domain.Answer, error) {
	return listAnswers(ctx, s.db, submissionID)
}

// FinalizeSubmission locks the submission row, grades its answers and writes the
// outcome in one transaction.
func (s *Store) FinalizeSubmission(ctx context.Context, submissionID string, grade domain.GradeFunc) (domain.Submission, error) {
	var out domain.Submission
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row, err := s.selectSubmission(ctx, tx, submissionID, "UPDATE")
		if err != nil {
			return err
		}
		sub := row.toDomain()
		if sub.Finalized() {
			return domain.ErrAlreadySubmitted
		}
		answers, err := listAnswers(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		g, err := grade(sub, answers)
		if err != nil {
			return err
		}

		submittedAt := g.SubmittedAt.UTC()
		row.Status = string(domain.StatusSubmitted)
		row.Score = &g.Score
		row.IsPassed = &g.IsPassed
		row.SubmittedAt = &submittedAt
		res, err := tx.NewUpdate().Model(row).
			Column("status", "score", "is_passed", "submitted_at").
			Where("id = ?", submissionID).
			Where("status = ?", string(domain.StatusInProgress)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("finalize submission: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrAlreadySubmitted
		}
		out = row.toDomain()
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return out, nil
}

// selectSubmission reads one submission. lock is a row-lock strength applied on Postgres;
// SQLite serializes writers on its single connection instead.
func (s *Store) selectSubmission(ctx context.Context, db bun.IDB, submissionID, lock string) (*submissionRow, error) {
	row := new(submissionRow)
	q := db.NewSelect().Model(row).Where("s.id = ?", submissionID)
	if lock != "" && s.db.Dialect().Name() == dialect.PG {
		q = q.For(lock)
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return row, nil
}

func listAnswers(ctx context.Context, db bun.IDB, submissionID string) ([]domain.Answer, error) {
	var rows []answerRow
	err := db.NewSelect().Model(&rows).
		Where("ans.submission_id = ?", submissionID).
		Order("ans.recorded_at ASC", "ans.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23503"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "FOREIGN KEY")
		}
	}
	return false
}
