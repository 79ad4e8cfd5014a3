package app

import (
	"context"

	"assessment-service/internal/domain"
)

// AssessmentRepository loads assessment content (from cache/backing store).
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// AssessmentCatalog lists assessments for curriculum browsing.
type AssessmentCatalog interface {
	ListAssessments(ctx context.Context, filter domain.AssessmentFilter) ([]domain.AssessmentSummary, error)
}

// SubmissionRepository abstracts where submissions and answers live (in-memory, SQL).
//
// Implementations must make CreateSubmission reject a second IN_PROGRESS submission
// for the same student and assessment, make InsertAnswer reject duplicates and answers
// to finalized submissions, and run FinalizeSubmission's grade callback while the
// submission is protected from concurrent answers and finalization.
type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, sub domain.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error)
	InsertAnswer(ctx context.Context, answer domain.Answer) error
	ListAnswers(ctx context.Context, submissionID string) ([]domain.Answer, error)
	FinalizeSubmission(ctx context.Context, submissionID string, grade domain.GradeFunc) (domain.Submission, error)
}

// Explainer produces a human-readable explanation for an answered question.
type Explainer interface {
	Explain(ctx context.Context, q domain.Question, a domain.Answer) (string, error)
}

// ResultsCache stores finalized results, which never change.
type ResultsCache interface {
	GetResults(ctx context.Context, submissionID string) (domain.ResultsView, bool, error)
	PutResults(ctx context.Context, view domain.ResultsView) error
}
