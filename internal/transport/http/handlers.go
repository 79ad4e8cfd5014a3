package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Handlers expose the assessment use cases over REST.
type Handlers struct {
	service *app.AssessmentService
	logger  *slog.Logger
}

// maxBodyBytes caps request bodies; answers are small JSON scalars.
const maxBodyBytes = 64 << 10

func NewHandlers(service *app.AssessmentService, logger *slog.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

type startRequest struct {
	StudentID string `json:"studentId"`
}

type startResponse struct {
	SubmissionID string                     `json:"submissionId"`
	Questions    []domain.SanitizedQuestion `json:"questions"`
}

type answerRequest struct {
	SubmissionID string          `json:"submissionId"`
	Answer       json.RawMessage `json:"answer"`
}

type answerResponse struct {
	Message   string `json:"message"`
	AnswerID  string `json:"answerId"`
	IsCorrect bool   `json:"isCorrect"`
}

type submitRequest struct {
	SubmissionID string `json:"submissionId"`
}

type submitResponse struct {
	Message  string  `json:"message"`
	Score    float64 `json:"score"`
	IsPassed bool    `json:"isPassed"`
}

func (h *Handlers) GetAssessment(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Assessment(r.Context(), chi.URLParam(r, "assessmentId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) ListByChapter(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.AssessmentFilter{ChapterID: chi.URLParam(r, "chapterId")})
}

func (h *Handlers) ListByTopic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, domain.AssessmentFilter{TopicID: chi.URLParam(r, "topicId")})
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request, filter domain.AssessmentFilter) {
	list, err := h.service.ListAssessments(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) GetQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.Questions(r.Context(), chi.URLParam(r, "assessmentId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decode(w, r, &req) {
		return
	}
	studentID := req.StudentID
	if sub := SubjectFromContext(r.Context()); sub != "" {
		if studentID != "" && studentID != sub {
			writeError(w, r, h.logger, errForbidden)
			return
		}
		studentID = sub
	}
	if studentID == "" {
		writeError(w, r, h.logger, domain.Validationf("studentId is required"))
		return
	}

	started, err := h.service.Start(r.Context(), chi.URLParam(r, "assessmentId"), studentID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SubmissionID: started.SubmissionID, Questions: started.Questions})
}

func (h *Handlers) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.authorize(r.Context(), req.SubmissionID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	answer, err := h.service.RecordAnswer(r.Context(), req.SubmissionID, chi.URLParam(r, "questionId"), req.Answer)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Message: "Answer submitted", AnswerID: answer.ID, IsCorrect: answer.IsCorrect})
}

func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.authorize(r.Context(), req.SubmissionID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	grade, err := h.service.Submit(r.Context(), chi.URLParam(r, "assessmentId"), req.SubmissionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Message: "Assessment submitted", Score: grade.Score, IsPassed: grade.IsPassed})
}

func (h *Handlers) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "submissionId")
	if err := h.authorize(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	detail, err := h.service.Submission(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handlers) GetResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "submissionId")
	if err := h.authorize(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	view, err := h.service.Results(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, domain.Validationf("request body exceeds %d bytes", maxBodyBytes))
			return false
		}
		writeError(w, r, h.logger, domain.Validationf("invalid JSON body"))
		return false
	}
	return true
}

// authorize lets the owner of a submission act on it. With the guard off there is no
// subject and every caller passes.
func (h *Handlers) authorize(ctx context.Context, submissionID string) error {
	sub := SubjectFromContext(ctx)
	if sub == "" || submissionID == "" {
		return nil
	}
	owner, err := h.service.Owner(ctx, submissionID)
	if err != nil {
		return err
	}
	if owner != sub {
		return errForbidden
	}
	return nil
}
