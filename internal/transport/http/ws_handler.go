package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// WSHandler runs one submission over a websocket: answers in, results out.
type WSHandler struct {
	service  *app.AssessmentService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AssessmentService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

type answerResult struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
	IsCorrect  bool   `json:"isCorrect"`
}

type submittedPayload struct {
	Score    float64 `json:"score"`
	IsPassed bool    `json:"isPassed"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request after checking that the caller owns the submission.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submissionId")
	owner, err := h.service.Owner(r.Context(), submissionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if sub := SubjectFromContext(r.Context()); sub != "" && sub != owner {
		writeError(w, r, h.logger, errForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write failed", "submission_id", submissionID, "err", err)
				// closing unblocks the reader; drain so it never blocks on send
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(r.Context(), submissionID, inbound) {
			send <- msg
		}
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, submissionID string, in inboundMessage) []outboundMessage[any] {
	switch in.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return []outboundMessage[any]{h.errorMessage(domain.Validationf("invalid answer payload"))}
		}
		answer, err := h.service.RecordAnswer(ctx, submissionID, payload.QuestionID, payload.Answer)
		if err != nil {
			return []outboundMessage[any]{h.errorMessage(err)}
		}
		return []outboundMessage[any]{{Type: "answerResult", Payload: answerResult{
			QuestionID: payload.QuestionID,
			AnswerID:   answer.ID,
			IsCorrect:  answer.IsCorrect,
		}}}
	case "submit":
		grade, err := h.service.Submit(ctx, "", submissionID)
		if err != nil {
			return []outboundMessage[any]{h.errorMessage(err)}
		}
		out := []outboundMessage[any]{{Type: "submitted", Payload: submittedPayload{Score: grade.Score, IsPassed: grade.IsPassed}}}
		view, err := h.service.Results(ctx, submissionID)
		if err != nil {
			return append(out, h.errorMessage(err))
		}
		return append(out, outboundMessage[any]{Type: "results", Payload: view})
	default:
		return []outboundMessage[any]{h.errorMessage(domain.Validationf("unsupported message type %q", in.Type))}
	}
}

func (h *WSHandler) errorMessage(err error) outboundMessage[any] {
	body := publicError(err)
	if domain.KindOf(err) == domain.KindInternal {
		h.logger.Error("ws request failed", "err", err)
	}
	return outboundMessage[any]{Type: "error", Payload: body}
}
