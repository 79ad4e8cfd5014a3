package bunstore

import (
	"encoding/json"
	"time"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

type assessmentRow struct {
	bun.BaseModel `bun:"table:assessments,alias:a"`

	ID           string    `bun:"id,pk"`
	Title        string    `bun:"title"`
	ChapterID    string    `bun:"chapter_id"`
	TopicID      string    `bun:"topic_id"`
	PassingScore float64   `bun:"passing_score"`
	CreatedAt    time.Time `bun:"created_at"`

	QuestionCount int `bun:"question_count,scanonly"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            string   `bun:"id,pk"`
	AssessmentID  string   `bun:"assessment_id"`
	Position      int      `bun:"position"`
	Text          string   `bun:"text"`
	Type          string   `bun:"type"`
	Options       []string `bun:"options"`
	CorrectAnswer string   `bun:"correct_answer"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID            string     `bun:"id,pk"`
	AssessmentID  string     `bun:"assessment_id"`
	StudentID     string     `bun:"student_id"`
	Status        string     `bun:"status"`
	QuestionOrder []string   `bun:"question_order"`
	Score         *float64   `bun:"score"`
	IsPassed      *bool      `bun:"is_passed"`
	CreatedAt     time.Time  `bun:"created_at"`
	SubmittedAt   *time.Time `bun:"submitted_at"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:ans"`

	ID           string    `bun:"id,pk"`
	SubmissionID string    `bun:"submission_id"`
	QuestionID   string    `bun:"question_id"`
	Value        string    `bun:"value"`
	IsCorrect    bool      `bun:"is_correct"`
	RecordedAt   time.Time `bun:"recorded_at"`
}

func newAssessmentRow(a domain.Assessment) *assessmentRow {
	return &assessmentRow{
		ID:           a.ID,
		Title:        a.Title,
		ChapterID:    a.ChapterID,
		TopicID:      a.TopicID,
		PassingScore: a.Threshold(),
		CreatedAt:    a.CreatedAt.UTC(),
	}
}

func (r assessmentRow) toDomain(questions []questionRow) domain.Assessment {
	a := domain.Assessment{
		ID:           r.ID,
		Title:        r.Title,
		ChapterID:    r.ChapterID,
		TopicID:      r.TopicID,
		PassingScore: r.PassingScore,
		CreatedAt:    r.CreatedAt,
		Questions:    make([]domain.Question, 0, len(questions)),
	}
	for _, q := range questions {
		a.Questions = append(a.Questions, q.toDomain())
	}
	return a
}

func (r assessmentRow) summary() domain.AssessmentSummary {
	return domain.AssessmentSummary{
		ID:            r.ID,
		Title:         r.Title,
		ChapterID:     r.ChapterID,
		TopicID:       r.TopicID,
		PassingScore:  r.PassingScore,
		QuestionCount: r.QuestionCount,
	}
}

func newQuestionRow(assessmentID string, position int, q domain.Question) questionRow {
	return questionRow{
		ID:            q.ID,
		AssessmentID:  assessmentID,
		Position:      position,
		Text:          q.Text,
		Type:          string(q.Type),
		Options:       q.Options,
		CorrectAnswer: string(q.CorrectAnswer),
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:            r.ID,
		AssessmentID:  r.AssessmentID,
		Text:          r.Text,
		Type:          domain.QuestionType(r.Type),
		Options:       r.Options,
		CorrectAnswer: json.RawMessage(r.CorrectAnswer),
		Position:      r.Position,
	}
}

func newSubmissionRow(s domain.Submission) *submissionRow {
	return &submissionRow{
		ID:            s.ID,
		AssessmentID:  s.AssessmentID,
		StudentID:     s.StudentID,
		Status:        string(s.Status),
		QuestionOrder: s.QuestionOrder,
		Score:         s.Score,
		IsPassed:      s.IsPassed,
		CreatedAt:     s.CreatedAt.UTC(),
		SubmittedAt:   s.SubmittedAt,
	}
}

func (r submissionRow) toDomain() domain.Submission {
	return domain.Submission{
		ID:            r.ID,
		AssessmentID:  r.AssessmentID,
		StudentID:     r.StudentID,
		Status:        domain.SubmissionStatus(r.Status),
		QuestionOrder: r.QuestionOrder,
		Score:         r.Score,
		IsPassed:      r.IsPassed,
		CreatedAt:     r.CreatedAt,
		SubmittedAt:   r.SubmittedAt,
	}
}

func newAnswerRow(a domain.Answer) *answerRow {
	return &answerRow{
		ID:           a.ID,
		SubmissionID: a.SubmissionID,
		QuestionID:   a.QuestionID,
		Value:        string(a.Value),
		IsCorrect:    a.IsCorrect,
		RecordedAt:   a.RecordedAt.UTC(),
	}
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		QuestionID:   r.QuestionID,
		Value:        json.RawMessage(r.Value),
		IsCorrect:    r.IsCorrect,
		RecordedAt:   r.RecordedAt,
	}
}
