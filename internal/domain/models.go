package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// DefaultPassingScore applies when an assessment does not set its own threshold.
const DefaultPassingScore = 60.0

// QuestionType tells clients how to render a question.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionTrueFalse    QuestionType = "true_false"
	QuestionShortAnswer  QuestionType = "short_answer"
)

// Question is immutable reference data owned by exactly one assessment.
type Question struct {
	ID            string          `json:"id"`
	AssessmentID  string          `json:"assessmentId"`
	Text          string          `json:"text"`
	Type          QuestionType    `json:"type"`
	Options       []string        `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Position      int             `json:"position"`
}

// Sanitize drops the answer key so the question is safe to show to a student.
func (q Question) Sanitize() SanitizedQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return SanitizedQuestion{ID: q.ID, Text: q.Text, Type: q.Type, Options: opts}
}

// SanitizedQuestion has no correct-answer field at all.
type SanitizedQuestion struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// Assessment is a quiz attached to a chapter and optionally a topic.
type Assessment struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	ChapterID    string     `json:"chapterId"`
	TopicID      string     `json:"topicId,omitempty"`
	PassingScore float64    `json:"passingScore"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Threshold returns the passing score, falling back to DefaultPassingScore when unset.
func (a Assessment) Threshold() float64 {
	if a.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return a.PassingScore
}

// Question finds a question of this assessment by id.
func (a Assessment) Question(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// View is the student-facing form of an assessment.
func (a Assessment) View() AssessmentView {
	questions := make([]SanitizedQuestion, 0, len(a.Questions))
	for _, q := range a.Questions {
		questions = append(questions, q.Sanitize())
	}
	return AssessmentView{
		ID:           a.ID,
		Title:        a.Title,
		ChapterID:    a.ChapterID,
		TopicID:      a.TopicID,
		PassingScore: a.Threshold(),
		Questions:    questions,
	}
}

// Summary is the listing form of an assessment.
func (a Assessment) Summary() AssessmentSummary {
	return AssessmentSummary{
		ID:            a.ID,
		Title:         a.Title,
		ChapterID:     a.ChapterID,
		TopicID:       a.TopicID,
		PassingScore:  a.Threshold(),
		QuestionCount: len(a.Questions),
	}
}

// AssessmentView is an assessment without answer keys.
type AssessmentView struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	ChapterID    string              `json:"chapterId"`
	TopicID      string              `json:"topicId,omitempty"`
	PassingScore float64             `json:"passingScore"`
	Questions    []SanitizedQuestion `json:"questions"`
}

// AssessmentSummary is returned by chapter and topic listings.
type AssessmentSummary struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	ChapterID     string  `json:"chapterId"`
	TopicID       string  `json:"topicId,omitempty"`
	PassingScore  float64 `json:"passingScore"`
	QuestionCount int     `json:"questionCount"`
}

// AssessmentFilter selects assessments by curriculum reference. Empty fields match anything.
type AssessmentFilter struct {
	ChapterID string
	TopicID   string
}

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusInProgress SubmissionStatus = "IN_PROGRESS"
	StatusSubmitted  SubmissionStatus = "SUBMITTED"
)

// Submission is one student's attempt at an assessment.
type Submission struct {
	ID            string           `json:"id"`
	AssessmentID  string           `json:"assessmentId"`
	StudentID     string           `json:"studentId"`
	Status        SubmissionStatus `json:"status"`
	QuestionOrder []string         `json:"questionOrder"`
	Score         *float64         `json:"score"`
	IsPassed      *bool            `json:"isPassed"`
	CreatedAt     time.Time        `json:"createdAt"`
	SubmittedAt   *time.Time       `json:"submittedAt"`
}

// Finalized reports whether the submission reached its terminal state.
func (s Submission) Finalized() bool {
	return s.Status == StatusSubmitted
}

// Answer is one recorded response. It never changes after it is stored.
type Answer struct {
	ID           string          `json:"id"`
	SubmissionID string          `json:"submissionId"`
	QuestionID   string          `json:"questionId"`
	Value        json.RawMessage `json:"answer"`
	IsCorrect    bool            `json:"isCorrect"`
	RecordedAt   time.Time       `json:"recordedAt"`
}

// Grade is the outcome written to a submission when it is finalized.
type Grade struct {
	Score       float64
	IsPassed    bool
	SubmittedAt time.Time
}

// GradeFunc computes a grade from a locked submission and its answers.
// Stores call it while the submission is protected against concurrent writes.
type GradeFunc func(sub Submission, answers []Answer) (Grade, error)

// SubmissionDetail is a submission together with its recorded answers.
type SubmissionDetail struct {
	Submission
	Answers []Answer `json:"answers"`
}

// Feedback describes one answered question after finalization.
type Feedback struct {
	QuestionID    string          `json:"questionId"`
	Question      string          `json:"question"`
	YourAnswer    json.RawMessage `json:"yourAnswer"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	IsCorrect     bool            `json:"isCorrect"`
	Explanation   string          `json:"explanation"`
}

// ResultsView is what a student sees once a submission is finalized.
type ResultsView struct {
	SubmissionID string     `json:"submissionId"`
	AssessmentID string     `json:"assessmentId"`
	Score        float64    `json:"score"`
	IsPassed     bool       `json:"isPassed"`
	PassingScore float64    `json:"passingScore"`
	Feedback     []Feedback `json:"feedback"`
}

// SameValue compares two JSON scalars exactly. Whitespace outside string literals is
// ignored; case, type and content are not normalized.
func SameValue(a, b json.RawMessage) bool {
	ca, okA := compact(a)
	cb, okB := compact(b)
	if !okA || !okB {
		return false
	}
	return bytes.Equal(ca, cb)
}

// ValidValue reports whether v is a non-null JSON value.
func ValidValue(v json.RawMessage) bool {
	c, ok := compact(v)
	return ok && !bytes.Equal(c, []byte("null"))
}

func compact(v json.RawMessage) ([]byte, bool) {
	if len(bytes.TrimSpace(v)) == 0 {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
