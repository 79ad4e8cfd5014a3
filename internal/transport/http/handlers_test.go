package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

func TestRESTFlow(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), nil, quietLogger(), RouterOptions{}))
	defer server.Close()

	var view domain.AssessmentView
	doJSON(t, server, http.MethodGet, "/assessments/quiz-1", "", nil, http.StatusOK, &view)
	if len(view.Questions) != 3 || view.PassingScore != 70 {
		t.Fatalf("unexpected assessment %+v", view)
	}
	var raw []map[string]any
	doJSON(t, server, http.MethodGet, "/assessments/quiz-1/questions", "", nil, http.StatusOK, &raw)
	for _, q := range raw {
		if _, leaked := q["correctAnswer"]; leaked {
			t.Fatalf("questions leaked an answer key: %v", q)
		}
	}

	var started startResponse
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/start", "", map[string]any{"studentId": "stu-1"}, http.StatusOK, &started)
	if started.SubmissionID == "" || len(started.Questions) != 3 {
		t.Fatalf("unexpected start %+v", started)
	}

	answers := map[string]any{"q1": "4", "q2": true, "q3": "Mars"}
	for _, qid := range []string{"q1", "q2", "q3"} {
		var res answerResponse
		doJSON(t, server, http.MethodPost, "/questions/"+qid+"/answer", "",
			map[string]any{"submissionId": started.SubmissionID, "answer": answers[qid]}, http.StatusOK, &res)
		if res.Message != "Answer submitted" || res.IsCorrect != (qid != "q3") {
			t.Fatalf("unexpected answer result for %s: %+v", qid, res)
		}
	}
	doJSON(t, server, http.MethodPost, "/questions/q1/answer", "",
		map[string]any{"submissionId": started.SubmissionID, "answer": "4"}, http.StatusConflict, nil)

	doJSON(t, server, http.MethodGet, "/submissions/"+started.SubmissionID+"/results", "", nil, http.StatusBadRequest, nil)

	var submitted submitResponse
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/submit", "",
		map[string]any{"submissionId": started.SubmissionID}, http.StatusOK, &submitted)
	if submitted.Message != "Assessment submitted" || submitted.IsPassed || submitted.Score < 66.6 || submitted.Score > 66.7 {
		t.Fatalf("unexpected submit %+v", submitted)
	}
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/submit", "",
		map[string]any{"submissionId": started.SubmissionID}, http.StatusConflict, nil)

	var detail domain.SubmissionDetail
	doJSON(t, server, http.MethodGet, "/submissions/"+started.SubmissionID, "", nil, http.StatusOK, &detail)
	if detail.Status != domain.StatusSubmitted || len(detail.Answers) != 3 {
		t.Fatalf("unexpected submission %+v", detail)
	}

	var results domain.ResultsView
	doJSON(t, server, http.MethodGet, "/submissions/"+started.SubmissionID+"/results", "", nil, http.StatusOK, &results)
	if len(results.Feedback) != 3 || results.IsPassed {
		t.Fatalf("unexpected results %+v", results)
	}
	for i, fb := range results.Feedback {
		if fb.QuestionID != started.Questions[i].ID {
			t.Fatalf("feedback not in presentation order: %+v", results.Feedback)
		}
		if fb.Explanation == "" {
			t.Fatalf("missing explanation for %s", fb.QuestionID)
		}
	}
}

func TestRESTErrorMapping(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), nil, quietLogger(), RouterOptions{}))
	defer server.Close()

	var body errorBody
	doJSON(t, server, http.MethodGet, "/assessments/missing", "", nil, http.StatusNotFound, &body)
	if body.Kind != "not_found" || body.Message == "" {
		t.Fatalf("unexpected error body %+v", body)
	}
	doJSON(t, server, http.MethodPost, "/assessments/empty-1/start", "", map[string]any{"studentId": "stu-1"}, http.StatusNotFound, nil)
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/start", "", map[string]any{}, http.StatusBadRequest, nil)
	doJSON(t, server, http.MethodGet, "/submissions/nope", "", nil, http.StatusNotFound, nil)
	doJSON(t, server, http.MethodPost, "/questions/q1/answer", "", map[string]any{"submissionId": "nope", "answer": "4"}, http.StatusNotFound, nil)

	var started startResponse
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/start", "", map[string]any{"studentId": "stu-1"}, http.StatusOK, &started)
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/submit", "", map[string]any{"submissionId": started.SubmissionID}, http.StatusBadRequest, nil)
	doJSON(t, server, http.MethodPost, "/questions/other-q1/answer", "",
		map[string]any{"submissionId": started.SubmissionID, "answer": "x"}, http.StatusBadRequest, nil)
	doJSON(t, server, http.MethodPost, "/questions/q1/answer", "",
		map[string]any{"submissionId": started.SubmissionID}, http.StatusBadRequest, nil)
	doJSON(t, server, http.MethodPost, "/assessments/other-1/submit", "",
		map[string]any{"submissionId": started.SubmissionID}, http.StatusBadRequest, nil)
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/start", "", map[string]any{"studentId": "stu-1"}, http.StatusConflict, nil)

	resp, err := http.Post(server.URL+"/assessments/quiz-1/start", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", resp.StatusCode)
	}
}

func TestOversizedBodyIsRejected(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), nil, quietLogger(), RouterOptions{}))
	defer server.Close()

	var started startResponse
	doJSON(t, server, http.MethodPost, "/assessments/quiz-1/start", "", map[string]any{"studentId": "stu-1"}, http.StatusOK, &started)

	var body errorBody
	huge := strings.Repeat("4", maxBodyBytes+1)
	doJSON(t, server, http.MethodPost, "/questions/q1/answer", "",
		map[string]any{"submissionId": started.SubmissionID, "answer": huge}, http.StatusBadRequest, &body)
	if body.Kind != "validation" || !strings.Contains(body.Message, "exceeds") {
		t.Fatalf("unexpected error body %+v", body)
	}

	var answered answerResponse
	doJSON(t, server, http.MethodPost, "/questions/q1/answer", "",
		map[string]any{"submissionId": started.SubmissionID, "answer": "4"}, http.StatusOK, &answered)
	if !answered.IsCorrect {
		t.Fatalf("expected the rejected body to leave q1 unanswered, got %+v", answered)
	}
}

func TestListings(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), nil, quietLogger(), RouterOptions{}))
	defer server.Close()

	var byChapter []domain.AssessmentSummary
	doJSON(t, server, http.MethodGet, "/assessments/chapter/ch-1", "", nil, http.StatusOK, &byChapter)
	if len(byChapter) != 2 {
		t.Fatalf("expected two assessments in ch-1, got %+v", byChapter)
	}
	var byTopic []domain.AssessmentSummary
	doJSON(t, server, http.MethodGet, "/assessments/topic/space", "", nil, http.StatusOK, &byTopic)
	if len(byTopic) != 1 || byTopic[0].ID != "quiz-1" || byTopic[0].QuestionCount != 3 {
		t.Fatalf("unexpected topic listing %+v", byTopic)
	}
	doJSON(t, server, http.MethodGet, "/assessments/chapter/none", "", nil, http.StatusNotFound, nil)
}

func TestHealthz(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), nil, quietLogger(), RouterOptions{}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body any, wantStatus int, out any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d (%s)", method, path, wantStatus, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("%s %s: decode %s: %v", method, path, raw, err)
		}
	}
}

func newTestService() *app.AssessmentService {
	loader := memory.NewStaticAssessmentLoader(sampleAssessments())
	return app.NewAssessmentService(app.Deps{
		Assessments: memory.NewAssessmentRepository(loader, time.Minute),
		Catalog:     loader,
		Submissions: memory.NewSubmissionStore(),
		Logger:      quietLogger(),
	}, app.Options{StoreTimeout: time.Second})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleAssessments() []domain.Assessment {
	return []domain.Assessment{
		{
			ID: "quiz-1", Title: "Space", ChapterID: "ch-1", TopicID: "space", PassingScore: 70,
			Questions: []domain.Question{
				{ID: "q1", Text: "What is 2 + 2?", Type: domain.QuestionSingleChoice, Options: []string{"3", "4", "5"}, CorrectAnswer: json.RawMessage(`"4"`)},
				{ID: "q2", Text: "Is the Moon a satellite?", Type: domain.QuestionTrueFalse, Options: []string{"true", "false"}, CorrectAnswer: json.RawMessage(`true`)},
				{ID: "q3", Text: "Closest planet to the Sun?", Type: domain.QuestionShortAnswer, CorrectAnswer: json.RawMessage(`"Mercury"`)},
			},
		},
		{ID: "empty-1", Title: "Coming soon", ChapterID: "ch-1"},
		{
			ID: "other-1", Title: "Other", ChapterID: "ch-2",
			Questions: []domain.Question{{ID: "other-q1", Text: "?", Type: domain.QuestionShortAnswer, CorrectAnswer: json.RawMessage(`"x"`)}},
		},
	}
}
