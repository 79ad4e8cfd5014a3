package migrations

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// Table shapes as of this migration. Later schema changes get their own migration.
type assessment struct {
	bun.BaseModel `bun:"table:assessments"`

	ID           string    `bun:"id,pk"`
	Title        string    `bun:"title,notnull"`
	ChapterID    string    `bun:"chapter_id,notnull"`
	TopicID      string    `bun:"topic_id,notnull"`
	PassingScore float64   `bun:"passing_score,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

type question struct {
	bun.BaseModel `bun:"table:questions"`

	ID            string   `bun:"id,pk"`
	AssessmentID  string   `bun:"assessment_id,notnull"`
	Position      int      `bun:"position,notnull"`
	Text          string   `bun:"text,notnull"`
	Type          string   `bun:"type,notnull"`
	Options       []string `bun:"options"`
	CorrectAnswer string   `bun:"correct_answer,notnull"`
}

type submission struct {
	bun.BaseModel `bun:"table:submissions"`

	ID            string     `bun:"id,pk"`
	AssessmentID  string     `bun:"assessment_id,notnull"`
	StudentID     string     `bun:"student_id,notnull"`
	Status        string     `bun:"status,notnull"`
	QuestionOrder []string   `bun:"question_order"`
	Score         *float64   `bun:"score"`
	IsPassed      *bool      `bun:"is_passed"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
	SubmittedAt   *time.Time `bun:"submitted_at"`
}

type answer struct {
	bun.BaseModel `bun:"table:answers"`

	ID           string    `bun:"id,pk"`
	SubmissionID string    `bun:"submission_id,notnull"`
	QuestionID   string    `bun:"question_id,notnull"`
	Value        string    `bun:"value,notnull"`
	IsCorrect    bool      `bun:"is_correct,notnull"`
	RecordedAt   time.Time `bun:"recorded_at,notnull"`
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS questions_assessment_idx ON questions (assessment_id, position)`,
	`CREATE INDEX IF NOT EXISTS assessments_chapter_idx ON assessments (chapter_id)`,
	`CREATE INDEX IF NOT EXISTS assessments_topic_idx ON assessments (topic_id)`,
	// one open attempt per student and assessment
	`CREATE UNIQUE INDEX IF NOT EXISTS submissions_active_idx ON submissions (assessment_id, student_id) WHERE status = 'IN_PROGRESS'`,
	// one answer per question per submission
	`CREATE UNIQUE INDEX IF NOT EXISTS answers_submission_question_idx ON answers (submission_id, question_id)`,
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.NewCreateTable().Model((*assessment)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateTable().Model((*question)(nil)).IfNotExists().
				ForeignKey(`("assessment_id") REFERENCES "assessments" ("id") ON DELETE CASCADE`).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateTable().Model((*submission)(nil)).IfNotExists().
				ForeignKey(`("assessment_id") REFERENCES "assessments" ("id")`).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewCreateTable().Model((*answer)(nil)).IfNotExists().
				ForeignKey(`("submission_id") REFERENCES "submissions" ("id") ON DELETE CASCADE`).
				ForeignKey(`("question_id") REFERENCES "questions" ("id")`).
				Exec(ctx); err != nil {
				return err
			}
			for _, stmt := range indexes {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range []string{"answers", "submissions", "questions", "assessments"} {
				if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
