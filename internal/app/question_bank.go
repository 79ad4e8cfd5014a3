package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
)

// QuestionBank gives read-only access to assessments and their questions.
type QuestionBank struct {
	repo    AssessmentRepository
	catalog AssessmentCatalog
	timeout time.Duration
}

func NewQuestionBank(repo AssessmentRepository, catalog AssessmentCatalog, timeout time.Duration) *QuestionBank {
	return &QuestionBank{repo: repo, catalog: catalog, timeout: timeout}
}

// Assessment returns the full assessment, answer keys included.
func (b *QuestionBank) Assessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	if assessmentID == "" {
		return domain.Assessment{}, domain.Validationf("assessment id is required")
	}
	ctx, cancel := withStoreTimeout(ctx, b.timeout)
	defer cancel()

	a, err := b.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.Assessment{}, storeErr("load assessment", err)
	}
	// Callers must not be able to alter the cached copy.
	a.Questions = append([]domain.Question(nil), a.Questions...)
	return a, nil
}

// Playable returns an assessment that has at least one question.
func (b *QuestionBank) Playable(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	a, err := b.Assessment(ctx, assessmentID)
	if err != nil {
		return domain.Assessment{}, err
	}
	if len(a.Questions) == 0 {
		return domain.Assessment{}, domain.ErrAssessmentNotFound
	}
	return a, nil
}

// Question looks a question up by id regardless of assessment.
func (b *QuestionBank) Question(ctx context.Context, questionID string) (domain.Question, error) {
	if questionID == "" {
		return domain.Question{}, domain.Validationf("question id is required")
	}
	ctx, cancel := withStoreTimeout(ctx, b.timeout)
	defer cancel()

	q, err := b.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, storeErr("load question", err)
	}
	return q, nil
}

// List returns summaries matching the filter; an empty result is NotFound.
func (b *QuestionBank) List(ctx context.Context, filter domain.AssessmentFilter) ([]domain.AssessmentSummary, error) {
	if filter.ChapterID == "" && filter.TopicID == "" {
		return nil, domain.Validationf("chapter or topic id is required")
	}
	ctx, cancel := withStoreTimeout(ctx, b.timeout)
	defer cancel()

	list, err := b.catalog.ListAssessments(ctx, filter)
	if err != nil {
		return nil, storeErr("list assessments", err)
	}
	if len(list) == 0 {
		return nil, domain.ErrAssessmentNotFound
	}
	return list, nil
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// storeErr keeps classified errors as they are and wraps everything else as internal.
func storeErr(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.Error{Kind: domain.KindInternal, Msg: op + ": store timed out", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
