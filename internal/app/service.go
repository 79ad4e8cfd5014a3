package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"assessment-service/internal/domain"
)

// Deps are the adapters the service runs on.
type Deps struct {
	Assessments AssessmentRepository
	Catalog     AssessmentCatalog
	Submissions SubmissionRepository
	Explainer   Explainer
	Results     ResultsCache
	Logger      *slog.Logger
}

// Options tune the service.
type Options struct {
	// StoreTimeout bounds every repository call. Zero disables the bound.
	StoreTimeout time.Duration
	Randomizer   *Randomizer
}

// AssessmentService contains the assessment use cases exposed to transports.
type AssessmentService struct {
	bank     *QuestionBank
	manager  *SubmissionManager
	recorder *AnswerRecorder
	scoring  *ScoringEngine
	results  *ResultsAggregator
}

func NewAssessmentService(deps Deps, opts Options) *AssessmentService {
	randomizer := opts.Randomizer
	if randomizer == nil {
		randomizer = NewRandomizer()
	}
	bank := NewQuestionBank(deps.Assessments, deps.Catalog, opts.StoreTimeout)
	manager := NewSubmissionManager(bank, randomizer, deps.Submissions, opts.StoreTimeout)
	return &AssessmentService{
		bank:     bank,
		manager:  manager,
		recorder: NewAnswerRecorder(manager, bank, deps.Submissions, opts.StoreTimeout),
		scoring:  NewScoringEngine(manager, bank),
		results:  NewResultsAggregator(manager, bank, deps.Explainer, deps.Results, deps.Logger),
	}
}

// Assessment returns the assessment without answer keys.
func (s *AssessmentService) Assessment(ctx context.Context, assessmentID string) (domain.AssessmentView, error) {
	a, err := s.bank.Assessment(ctx, assessmentID)
	if err != nil {
		return domain.AssessmentView{}, err
	}
	return a.View(), nil
}

// Questions returns the sanitized questions of an assessment in authoring order.
func (s *AssessmentService) Questions(ctx context.Context, assessmentID string) ([]domain.SanitizedQuestion, error) {
	view, err := s.Assessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return view.Questions, nil
}

// ListAssessments lists assessments of a chapter or topic.
func (s *AssessmentService) ListAssessments(ctx context.Context, filter domain.AssessmentFilter) ([]domain.AssessmentSummary, error) {
	return s.bank.List(ctx, filter)
}

// Start begins an attempt for a student.
func (s *AssessmentService) Start(ctx context.Context, assessmentID, studentID string) (Started, error) {
	return s.manager.Start(ctx, assessmentID, studentID)
}

// RecordAnswer stores one answer for an in-progress submission.
func (s *AssessmentService) RecordAnswer(ctx context.Context, submissionID, questionID string, value json.RawMessage) (domain.Answer, error) {
	if submissionID == "" {
		return domain.Answer{}, domain.Validationf("submissionId is required")
	}
	return s.recorder.Record(ctx, submissionID, questionID, value)
}

// Submit finalizes a submission. assessmentID may be empty when the caller does not
// address the submission through its assessment.
func (s *AssessmentService) Submit(ctx context.Context, assessmentID, submissionID string) (domain.Grade, error) {
	if submissionID == "" {
		return domain.Grade{}, domain.Validationf("submissionId is required")
	}
	if assessmentID != "" {
		sub, err := s.manager.GetSubmission(ctx, submissionID)
		if err != nil {
			return domain.Grade{}, err
		}
		if sub.AssessmentID != assessmentID {
			return domain.Grade{}, domain.Validationf("submission %s does not belong to assessment %s", submissionID, assessmentID)
		}
	}
	return s.scoring.Finalize(ctx, submissionID)
}

// Submission returns a submission with its answers.
func (s *AssessmentService) Submission(ctx context.Context, submissionID string) (domain.SubmissionDetail, error) {
	return s.manager.Detail(ctx, submissionID)
}

// Owner returns the student who started a submission.
func (s *AssessmentService) Owner(ctx context.Context, submissionID string) (string, error) {
	sub, err := s.manager.GetSubmission(ctx, submissionID)
	if err != nil {
		return "", err
	}
	return sub.StudentID, nil
}

// Results returns the feedback for a finalized submission.
func (s *AssessmentService) Results(ctx context.Context, submissionID string) (domain.ResultsView, error) {
	return s.results.GetResults(ctx, submissionID)
}
