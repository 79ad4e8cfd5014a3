package memory

import (
	"context"
	"sync"

	"assessment-service/internal/domain"
)

// SubmissionStore is an in-memory implementation of app.SubmissionRepository.
// A single mutex makes every check-then-write atomic.
type SubmissionStore struct {
	mu          sync.Mutex
	submissions map[string]domain.Submission
	answers     map[string][]domain.Answer
	active      map[activeKey]string
}

type activeKey struct {
	assessmentID string
	studentID    string
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[string]domain.Submission),
		answers:     make(map[string][]domain.Answer),
		active:      make(map[activeKey]string),
	}
}

func (s *SubmissionStore) CreateSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activeKey{assessmentID: sub.AssessmentID, studentID: sub.StudentID}
	if _, ok := s.active[key]; ok {
		return domain.ErrAttemptInProgress
	}
	sub.QuestionOrder = append([]string(nil), sub.QuestionOrder...)
	s.submissions[sub.ID] = sub
	s.active[key] = sub.ID
	return nil
}

func (s *SubmissionStore) GetSubmission(_ context.Context, submissionID string) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(sub), nil
}

func (s *SubmissionStore) InsertAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[answer.SubmissionID]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	if sub.Finalized() {
		return domain.ErrAlreadySubmitted
	}
	for _, existing := range s.answers[answer.SubmissionID] {
		if existing.QuestionID == answer.QuestionID {
			return domain.ErrDuplicateAnswer
		}
	}
	s.answers[answer.SubmissionID] = append(s.answers[answer.SubmissionID], answer)
	return nil
}

func (s *SubmissionStore) ListAnswers(_ context.Context, submissionID string) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Answer(nil), s.answers[submissionID]...), nil
}

func (s *SubmissionStore) FinalizeSubmission(_ context.Context, submissionID string, grade domain.GradeFunc) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if sub.Finalized() {
		return domain.Submission{}, domain.ErrAlreadySubmitted
	}
	g, err := grade(cloneSubmission(sub), append([]domain.Answer(nil), s.answers[submissionID]...))
	if err != nil {
		return domain.Submission{}, err
	}

	score, passed, at := g.Score, g.IsPassed, g.SubmittedAt
	sub.Status = domain.StatusSubmitted
	sub.Score = &score
	sub.IsPassed = &passed
	sub.SubmittedAt = &at
	s.submissions[submissionID] = sub
	delete(s.active, activeKey{assessmentID: sub.AssessmentID, studentID: sub.StudentID})
	return cloneSubmission(sub), nil
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	sub.QuestionOrder = append([]string(nil), sub.QuestionOrder...)
	if sub.Score != nil {
		v := *sub.Score
		sub.Score = &v
	}
	if sub.IsPassed != nil {
		v := *sub.IsPassed
		sub.IsPassed = &v
	}
	if sub.SubmittedAt != nil {
		v := *sub.SubmittedAt
		sub.SubmittedAt = &v
	}
	return sub
}
