package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures so transports can map them without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified failure returned by the core.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	// ErrAssessmentNotFound is returned for unknown assessments and for assessments without questions.
	ErrAssessmentNotFound = &Error{Kind: KindNotFound, Msg: "assessment not found"}
	// ErrQuestionNotFound indicates an unknown question id.
	ErrQuestionNotFound = &Error{Kind: KindNotFound, Msg: "question not found"}
	// ErrSubmissionNotFound indicates an unknown submission id.
	ErrSubmissionNotFound = &Error{Kind: KindNotFound, Msg: "submission not found"}
	// ErrQuestionNotInAssessment is returned when an answer targets another assessment's question.
	ErrQuestionNotInAssessment = &Error{Kind: KindValidation, Msg: "question does not belong to the submission's assessment"}
	// ErrNoAnswers is returned when finalizing a submission with nothing recorded.
	ErrNoAnswers = &Error{Kind: KindValidation, Msg: "no answers recorded for submission"}
	// ErrResultsNotReady is returned when results are requested before finalization.
	ErrResultsNotReady = &Error{Kind: KindValidation, Msg: "submission has not been submitted yet"}
	// ErrAlreadySubmitted guards the terminal SUBMITTED state.
	ErrAlreadySubmitted = &Error{Kind: KindConflict, Msg: "submission already submitted"}
	// ErrDuplicateAnswer rejects a second answer to the same question.
	ErrDuplicateAnswer = &Error{Kind: KindConflict, Msg: "question already answered in this submission"}
	// ErrQuestionInUse refuses to drop a question that already has recorded answers.
	ErrQuestionInUse = &Error{Kind: KindConflict, Msg: "question has recorded answers"}
	// ErrAttemptInProgress rejects a second concurrent attempt at the same assessment.
	ErrAttemptInProgress = &Error{Kind: KindConflict, Msg: "an attempt at this assessment is already in progress"}
)
