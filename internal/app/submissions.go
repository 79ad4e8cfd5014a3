package app

import (
	"context"
	"time"

	"assessment-service/internal/domain"
	"github.com/google/uuid"
)

// SubmissionManager owns the submission lifecycle: IN_PROGRESS -> SUBMITTED.
type SubmissionManager struct {
	bank       *QuestionBank
	randomizer *Randomizer
	store      SubmissionRepository
	timeout    time.Duration
	now        func() time.Time
	newID      func() string
}

func NewSubmissionManager(bank *QuestionBank, randomizer *Randomizer, store SubmissionRepository, timeout time.Duration) *SubmissionManager {
	return &SubmissionManager{
		bank:       bank,
		randomizer: randomizer,
		store:      store,
		timeout:    timeout,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Started is the result of starting an assessment.
type Started struct {
	SubmissionID string                     `json:"submissionId"`
	Questions    []domain.SanitizedQuestion `json:"questions"`
}

// Start opens a new IN_PROGRESS submission and returns the questions in a fresh random
// order without answer keys. A student may hold one open attempt per assessment.
func (m *SubmissionManager) Start(ctx context.Context, assessmentID, studentID string) (Started, error) {
	if studentID == "" {
		return Started{}, domain.Validationf("studentId is required")
	}
	assessment, err := m.bank.Playable(ctx, assessmentID)
	if err != nil {
		return Started{}, err
	}

	ordered := m.randomizer.Order(assessment.Questions)
	order := make([]string, len(ordered))
	questions := make([]domain.SanitizedQuestion, len(ordered))
	for i, q := range ordered {
		order[i] = q.ID
		questions[i] = q.Sanitize()
	}

	sub := domain.Submission{
		ID:            m.newID(),
		AssessmentID:  assessment.ID,
		StudentID:     studentID,
		Status:        domain.StatusInProgress,
		QuestionOrder: order,
		CreatedAt:     m.now().UTC(),
	}

	sctx, cancel := withStoreTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.store.CreateSubmission(sctx, sub); err != nil {
		return Started{}, storeErr("create submission", err)
	}
	return Started{SubmissionID: sub.ID, Questions: questions}, nil
}

// GetSubmission is a read-only lookup.
func (m *SubmissionManager) GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error) {
	if submissionID == "" {
		return domain.Submission{}, domain.Validationf("submissionId is required")
	}
	ctx, cancel := withStoreTimeout(ctx, m.timeout)
	defer cancel()

	sub, err := m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, storeErr("get submission", err)
	}
	return sub, nil
}

// Detail returns the submission with its answers in recording order.
func (m *SubmissionManager) Detail(ctx context.Context, submissionID string) (domain.SubmissionDetail, error) {
	sub, err := m.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.SubmissionDetail{}, err
	}
	answers, err := m.answers(ctx, submissionID)
	if err != nil {
		return domain.SubmissionDetail{}, err
	}
	return domain.SubmissionDetail{Submission: sub, Answers: answers}, nil
}

// Finalize records an externally computed score and closes the submission.
// It fails with ErrAlreadySubmitted if the submission is already closed.
func (m *SubmissionManager) Finalize(ctx context.Context, submissionID string, score float64, isPassed bool) (domain.Submission, error) {
	return m.FinalizeWith(ctx, submissionID, func(domain.Submission, []domain.Answer) (domain.Grade, error) {
		return domain.Grade{Score: score, IsPassed: isPassed, SubmittedAt: m.now().UTC()}, nil
	})
}

// FinalizeWith runs grade atomically with the IN_PROGRESS -> SUBMITTED transition.
// grade sees the locked submission and every answer recorded for it.
func (m *SubmissionManager) FinalizeWith(ctx context.Context, submissionID string, grade domain.GradeFunc) (domain.Submission, error) {
	ctx, cancel := withStoreTimeout(ctx, m.timeout)
	defer cancel()

	sub, err := m.store.FinalizeSubmission(ctx, submissionID, grade)
	if err != nil {
		return domain.Submission{}, storeErr("finalize submission", err)
	}
	return sub, nil
}

func (m *SubmissionManager) answers(ctx context.Context, submissionID string) ([]domain.Answer, error) {
	ctx, cancel := withStoreTimeout(ctx, m.timeout)
	defer cancel()

	answers, err := m.store.ListAnswers(ctx, submissionID)
	if err != nil {
		return nil, storeErr("list answers", err)
	}
	return answers, nil
}
