package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

func TestStartReturnsSanitizedShuffledQuestions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	started, err := service.Start(ctx, "math-1", "u1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.SubmissionID == "" {
		t.Fatalf("expected submission id")
	}
	if len(started.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(started.Questions))
	}
	seen := map[string]bool{}
	for _, q := range started.Questions {
		seen[q.ID] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected every question exactly once, got %v", seen)
	}

	raw, _ := json.Marshal(started)
	var decoded struct {
		Questions []map[string]any `json:"questions"`
	}
	_ = json.Unmarshal(raw, &decoded)
	for _, q := range decoded.Questions {
		if _, ok := q["correctAnswer"]; ok {
			t.Fatalf("start leaked an answer key: %v", q)
		}
	}

	sub, err := service.Submission(ctx, started.SubmissionID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if sub.Status != domain.StatusInProgress || sub.Score != nil || sub.IsPassed != nil {
		t.Fatalf("expected fresh in-progress submission, got %+v", sub.Submission)
	}
	for i, id := range sub.QuestionOrder {
		if started.Questions[i].ID != id {
			t.Fatalf("persisted order %v does not match presented order", sub.QuestionOrder)
		}
	}
}

func TestStartFailures(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.Start(ctx, "missing", "u1"); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.Start(ctx, "empty-1", "u1"); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found for an assessment without questions, got %v", err)
	}
	if _, err := service.Start(ctx, "math-1", ""); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for missing student, got %v", err)
	}
	if _, err := service.Start(ctx, "math-1", "u1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := service.Start(ctx, "math-1", "u1"); !errors.Is(err, domain.ErrAttemptInProgress) {
		t.Fatalf("expected second concurrent attempt to conflict, got %v", err)
	}
}

func TestScoringScenarios(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		score   float64
		passed  bool
	}{
		{name: "three of five passes at threshold", correct: 3, score: 60, passed: true},
		{name: "two of five fails", correct: 2, score: 40, passed: false},
		{name: "all correct", correct: 5, score: 100, passed: true},
		{name: "none correct", correct: 0, score: 0, passed: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			service, _ := newTestService()
			started, err := service.Start(ctx, "math-1", "u1")
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			for i := 0; i < 5; i++ {
				qid := fmt.Sprintf("q%d", i+1)
				value := `"wrong"`
				if i < tc.correct {
					value = fmt.Sprintf(`"%d"`, i+1)
				}
				if _, err := service.RecordAnswer(ctx, started.SubmissionID, qid, json.RawMessage(value)); err != nil {
					t.Fatalf("record %s: %v", qid, err)
				}
			}
			grade, err := service.Submit(ctx, "math-1", started.SubmissionID)
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if grade.Score != tc.score || grade.IsPassed != tc.passed {
				t.Fatalf("expected score=%v passed=%v, got %+v", tc.score, tc.passed, grade)
			}
			if grade.Score < 0 || grade.Score > 100 {
				t.Fatalf("score out of range: %v", grade.Score)
			}
		})
	}
}

func TestRecordAnswerRules(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	started, _ := service.Start(ctx, "math-1", "u1")

	answer, err := service.RecordAnswer(ctx, started.SubmissionID, "q1", json.RawMessage(`"1"`))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !answer.IsCorrect {
		t.Fatalf("expected exact match to be correct")
	}

	cases := []struct {
		name       string
		submission string
		question   string
		value      string
		want       error
		kind       domain.Kind
	}{
		{name: "duplicate", submission: started.SubmissionID, question: "q1", value: `"1"`, want: domain.ErrDuplicateAnswer},
		{name: "foreign question", submission: started.SubmissionID, question: "sci-q1", value: `"x"`, want: domain.ErrQuestionNotInAssessment},
		{name: "unknown question", submission: started.SubmissionID, question: "nope", value: `"x"`, want: domain.ErrQuestionNotFound},
		{name: "unknown submission", submission: "nope", question: "q2", value: `"x"`, want: domain.ErrSubmissionNotFound},
		{name: "missing value", submission: started.SubmissionID, question: "q2", value: ``, kind: domain.KindValidation},
		{name: "null value", submission: started.SubmissionID, question: "q2", value: `null`, kind: domain.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.RecordAnswer(ctx, tc.submission, tc.question, json.RawMessage(tc.value))
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want == nil && domain.KindOf(err) != tc.kind {
				t.Fatalf("expected kind %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestRecordAnswerIsExactMatch(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	started, _ := service.Start(ctx, "math-1", "u1")

	for qid, value := range map[string]string{"q1": `1`, "q2": `" 2"`, "q3": `"3 "`} {
		a, err := service.RecordAnswer(ctx, started.SubmissionID, qid, json.RawMessage(value))
		if err != nil {
			t.Fatalf("record %s: %v", qid, err)
		}
		if a.IsCorrect {
			t.Fatalf("expected %s for %s to be marked incorrect", value, qid)
		}
	}
}

func TestFinalizeRules(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	started, _ := service.Start(ctx, "math-1", "u1")

	if _, err := service.Submit(ctx, "math-1", started.SubmissionID); !errors.Is(err, domain.ErrNoAnswers) {
		t.Fatalf("expected empty attempt to be rejected, got %v", err)
	}
	if _, err := service.Submit(ctx, "math-1", "nope"); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.Submit(ctx, "science-1", started.SubmissionID); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for mismatched assessment, got %v", err)
	}

	_, _ = service.RecordAnswer(ctx, started.SubmissionID, "q1", json.RawMessage(`"1"`))
	first, err := service.Submit(ctx, "math-1", started.SubmissionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.Submit(ctx, "math-1", started.SubmissionID); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected second submit to conflict, got %v", err)
	}
	if _, err := service.RecordAnswer(ctx, started.SubmissionID, "q2", json.RawMessage(`"2"`)); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected answer on finalized submission to conflict, got %v", err)
	}

	sub, _ := service.Submission(ctx, started.SubmissionID)
	if sub.Score == nil || *sub.Score != first.Score || *sub.IsPassed != first.IsPassed {
		t.Fatalf("first grade must persist unchanged, got %+v", sub.Submission)
	}
	if len(sub.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(sub.Answers))
	}
}

func TestSubmissionManagerFinalize(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewStaticAssessmentLoader(fixtures())
	bank := app.NewQuestionBank(memory.NewAssessmentRepository(loader, time.Minute), loader, time.Second)
	manager := app.NewSubmissionManager(bank, app.NewSeededRandomizer(7), memory.NewSubmissionStore(), time.Second)

	started, err := manager.Start(ctx, "math-1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := manager.Finalize(ctx, "nope", 50, false); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	sub, err := manager.Finalize(ctx, started.SubmissionID, 80, true)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if sub.Status != domain.StatusSubmitted || sub.Score == nil || *sub.Score != 80 ||
		sub.IsPassed == nil || !*sub.IsPassed || sub.SubmittedAt == nil {
		t.Fatalf("unexpected finalized submission %+v", sub)
	}

	if _, err := manager.Finalize(ctx, started.SubmissionID, 10, false); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected second finalize to conflict, got %v", err)
	}
	stored, err := manager.GetSubmission(ctx, started.SubmissionID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if *stored.Score != 80 || !*stored.IsPassed {
		t.Fatalf("first grade must persist unchanged, got %+v", stored)
	}
}

func TestConcurrentSubmitHasOneWinner(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	started, _ := service.Start(ctx, "math-1", "u1")
	_, _ = service.RecordAnswer(ctx, started.SubmissionID, "q1", json.RawMessage(`"1"`))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Submit(ctx, "math-1", started.SubmissionID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrAlreadySubmitted):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful submit, got %d", wins)
	}
}

func TestResults(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	started, _ := service.Start(ctx, "math-1", "u1")

	// Answer in reverse presentation order; feedback must follow presentation order.
	for i := len(started.Questions) - 1; i >= 0; i-- {
		q := started.Questions[i]
		_, err := service.RecordAnswer(ctx, started.SubmissionID, q.ID, json.RawMessage(`"1"`))
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if _, err := service.Results(ctx, started.SubmissionID); !errors.Is(err, domain.ErrResultsNotReady) {
		t.Fatalf("expected results to be unavailable before submit, got %v", err)
	}
	if _, err := service.Results(ctx, "nope"); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	grade, err := service.Submit(ctx, "", started.SubmissionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	view, err := service.Results(ctx, started.SubmissionID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if view.Score != grade.Score || view.IsPassed != grade.IsPassed || view.PassingScore != 60 {
		t.Fatalf("results disagree with grade: %+v vs %+v", view, grade)
	}
	if len(view.Feedback) != 5 {
		t.Fatalf("expected 5 feedback entries, got %d", len(view.Feedback))
	}
	for i, fb := range view.Feedback {
		if fb.QuestionID != started.Questions[i].ID {
			t.Fatalf("feedback %d is %s, want presentation order %s", i, fb.QuestionID, started.Questions[i].ID)
		}
		if fb.Explanation != app.NoExplanation {
			t.Fatalf("expected placeholder explanation, got %q", fb.Explanation)
		}
		if len(fb.CorrectAnswer) == 0 || len(fb.YourAnswer) == 0 {
			t.Fatalf("expected both answers in feedback, got %+v", fb)
		}
	}
}

func TestResultsUsesExplainer(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewStaticAssessmentLoader(fixtures())
	service := app.NewAssessmentService(app.Deps{
		Assessments: memory.NewAssessmentRepository(loader, time.Minute),
		Catalog:     loader,
		Submissions: memory.NewSubmissionStore(),
		Explainer:   explainerFunc(func(q domain.Question, a domain.Answer) (string, error) {
			if a.IsCorrect {
				return "", nil
			}
			if q.ID == "q2" {
				return "", errors.New("upstream down")
			}
			return "The answer to " + q.ID + " is " + string(q.CorrectAnswer), nil
		}),
	}, app.Options{})

	started, _ := service.Start(ctx, "math-1", "u1")
	_, _ = service.RecordAnswer(ctx, started.SubmissionID, "q1", json.RawMessage(`"1"`))
	_, _ = service.RecordAnswer(ctx, started.SubmissionID, "q2", json.RawMessage(`"x"`))
	_, _ = service.RecordAnswer(ctx, started.SubmissionID, "q3", json.RawMessage(`"x"`))
	if _, err := service.Submit(ctx, "math-1", started.SubmissionID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	view, err := service.Results(ctx, started.SubmissionID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	got := map[string]string{}
	for _, fb := range view.Feedback {
		got[fb.QuestionID] = fb.Explanation
	}
	if got["q1"] != app.NoExplanation || got["q2"] != app.NoExplanation {
		t.Fatalf("expected placeholder for empty and failed explanations, got %v", got)
	}
	if got["q3"] != `The answer to q3 is "3"` {
		t.Fatalf("unexpected explanation %q", got["q3"])
	}
}

func TestStoreTimeoutIsInternal(t *testing.T) {
	ctx := context.Background()
	loader := memory.NewStaticAssessmentLoader(fixtures())
	service := app.NewAssessmentService(app.Deps{
		Assessments: slowRepository{memory.NewAssessmentRepository(loader, time.Minute)},
		Catalog:     loader,
		Submissions: memory.NewSubmissionStore(),
	}, app.Options{StoreTimeout: 10 * time.Millisecond})

	_, err := service.Start(ctx, "math-1", "u1")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if domain.KindOf(err) != domain.KindInternal || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected internal timeout, got %v", err)
	}
}

func TestListAssessments(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	list, err := service.ListAssessments(ctx, domain.AssessmentFilter{ChapterID: "number-algebra"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 assessments in chapter, got %+v", list)
	}
	if _, err := service.ListAssessments(ctx, domain.AssessmentFilter{TopicID: "none"}); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found for empty topic, got %v", err)
	}
	if _, err := service.ListAssessments(ctx, domain.AssessmentFilter{}); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error without filter, got %v", err)
	}
}

func newTestService() (*app.AssessmentService, *memory.SubmissionStore) {
	loader := memory.NewStaticAssessmentLoader(fixtures())
	store := memory.NewSubmissionStore()
	return app.NewAssessmentService(app.Deps{
		Assessments: memory.NewAssessmentRepository(loader, 5*time.Minute),
		Catalog:     loader,
		Submissions: store,
	}, app.Options{StoreTimeout: time.Second}), store
}

// fixtures: math-1 has five questions whose correct answer is the question number as a string.
func fixtures() []domain.Assessment {
	math := domain.Assessment{ID: "math-1", Title: "Addition", ChapterID: "number-algebra", TopicID: "addition", PassingScore: 60}
	for i := 1; i <= 5; i++ {
		math.Questions = append(math.Questions, domain.Question{
			ID:            fmt.Sprintf("q%d", i),
			Text:          fmt.Sprintf("Question %d", i),
			Type:          domain.QuestionShortAnswer,
			CorrectAnswer: json.RawMessage(fmt.Sprintf(`"%d"`, i)),
			Position:      i,
		})
	}
	return []domain.Assessment{
		math,
		{ID: "empty-1", Title: "Coming soon", ChapterID: "number-algebra"},
		{
			ID: "science-1", Title: "Forces", ChapterID: "physical-world",
			Questions: []domain.Question{{ID: "sci-q1", Text: "Push or pull?", CorrectAnswer: json.RawMessage(`"push"`)}},
		},
	}
}

type explainerFunc func(q domain.Question, a domain.Answer) (string, error)

func (f explainerFunc) Explain(_ context.Context, q domain.Question, a domain.Answer) (string, error) {
	return f(q, a)
}

type slowRepository struct {
	app.AssessmentRepository
}

func (r slowRepository) GetAssessment(ctx context.Context, id string) (domain.Assessment, error) {
	<-ctx.Done()
	return domain.Assessment{}, ctx.Err()
}
