package app

import (
	"context"
	"encoding/json"
	"time"

	"assessment-service/internal/domain"
	"github.com/google/uuid"
)

// AnswerRecorder validates and stores one answer at a time.
type AnswerRecorder struct {
	submissions *SubmissionManager
	bank        *QuestionBank
	store       SubmissionRepository
	timeout     time.Duration
	now         func() time.Time
	newID       func() string
}

func NewAnswerRecorder(submissions *SubmissionManager, bank *QuestionBank, store SubmissionRepository, timeout time.Duration) *AnswerRecorder {
	return &AnswerRecorder{
		submissions: submissions,
		bank:        bank,
		store:       store,
		timeout:     timeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Record checks value against the question's answer key and persists the answer.
// Matching is exact: no trimming, case folding or type coercion.
func (r *AnswerRecorder) Record(ctx context.Context, submissionID, questionID string, value json.RawMessage) (domain.Answer, error) {
	if !domain.ValidValue(value) {
		return domain.Answer{}, domain.Validationf("answer is required")
	}

	sub, err := r.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Answer{}, err
	}
	question, err := r.bank.Question(ctx, questionID)
	if err != nil {
		return domain.Answer{}, err
	}
	if question.AssessmentID != sub.AssessmentID {
		return domain.Answer{}, domain.ErrQuestionNotInAssessment
	}
	if sub.Finalized() {
		return domain.Answer{}, domain.ErrAlreadySubmitted
	}

	answer := domain.Answer{
		ID:           r.newID(),
		SubmissionID: sub.ID,
		QuestionID:   question.ID,
		Value:        append(json.RawMessage(nil), value...),
		IsCorrect:    domain.SameValue(question.CorrectAnswer, value),
		RecordedAt:   r.now().UTC(),
	}

	sctx, cancel := withStoreTimeout(ctx, r.timeout)
	defer cancel()
	// The store re-checks status and uniqueness atomically.
	if err := r.store.InsertAnswer(sctx, answer); err != nil {
		return domain.Answer{}, storeErr("insert answer", err)
	}
	return answer, nil
}
