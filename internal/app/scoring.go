package app

import (
	"context"
	"time"

	"assessment-service/internal/domain"
)

// ScoringEngine computes the final score and verdict and closes the submission.
type ScoringEngine struct {
	submissions *SubmissionManager
	bank        *QuestionBank
	now         func() time.Time
}

func NewScoringEngine(submissions *SubmissionManager, bank *QuestionBank) *ScoringEngine {
	return &ScoringEngine{submissions: submissions, bank: bank, now: time.Now}
}

// Finalize scores every recorded answer and transitions the submission to SUBMITTED.
// Concurrent calls on one submission are serialized by the store; the loser gets
// ErrAlreadySubmitted.
func (e *ScoringEngine) Finalize(ctx context.Context, submissionID string) (domain.Grade, error) {
	sub, err := e.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.Grade{}, err
	}
	if sub.Finalized() {
		return domain.Grade{}, domain.ErrAlreadySubmitted
	}
	assessment, err := e.bank.Assessment(ctx, sub.AssessmentID)
	if err != nil {
		return domain.Grade{}, err
	}
	threshold := assessment.Threshold()

	var grade domain.Grade
	_, err = e.submissions.FinalizeWith(ctx, submissionID, func(_ domain.Submission, answers []domain.Answer) (domain.Grade, error) {
		score, err := Score(answers)
		if err != nil {
			return domain.Grade{}, err
		}
		grade = domain.Grade{
			Score:       score,
			IsPassed:    score >= threshold,
			SubmittedAt: e.now().UTC(),
		}
		return grade, nil
	})
	if err != nil {
		return domain.Grade{}, err
	}
	return grade, nil
}

// Score returns 100 * correct / total as an unrounded percentage.
func Score(answers []domain.Answer) (float64, error) {
	if len(answers) == 0 {
		return 0, domain.ErrNoAnswers
	}
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	return float64(100*correct) / float64(len(answers)), nil
}
