package app

import (
	"context"
	"log/slog"
	"sort"

	"assessment-service/internal/domain"
)

// NoExplanation is shown when no explanation can be produced.
const NoExplanation = "No explanation available."

// PlaceholderExplainer always returns NoExplanation.
type PlaceholderExplainer struct{}

func (PlaceholderExplainer) Explain(context.Context, domain.Question, domain.Answer) (string, error) {
	return NoExplanation, nil
}

// ResultsAggregator builds the feedback payload for finalized submissions.
type ResultsAggregator struct {
	submissions *SubmissionManager
	bank        *QuestionBank
	explainer   Explainer
	cache       ResultsCache
	logger      *slog.Logger
}

// NewResultsAggregator builds an aggregator. explainer and cache may be nil.
func NewResultsAggregator(submissions *SubmissionManager, bank *QuestionBank, explainer Explainer, cache ResultsCache, logger *slog.Logger) *ResultsAggregator {
	if explainer == nil {
		explainer = PlaceholderExplainer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsAggregator{submissions: submissions, bank: bank, explainer: explainer, cache: cache, logger: logger}
}

// GetResults returns score, verdict and per-question feedback in the order the
// questions were presented. Unfinalized submissions yield ErrResultsNotReady.
func (r *ResultsAggregator) GetResults(ctx context.Context, submissionID string) (domain.ResultsView, error) {
	if r.cache != nil && submissionID != "" {
		view, ok, err := r.cache.GetResults(ctx, submissionID)
		if err != nil {
			r.logger.Warn("results cache read failed", "submission_id", submissionID, "err", err)
		} else if ok {
			return view, nil
		}
	}

	sub, err := r.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.ResultsView{}, err
	}
	if !sub.Finalized() || sub.Score == nil || sub.IsPassed == nil {
		return domain.ResultsView{}, domain.ErrResultsNotReady
	}
	assessment, err := r.bank.Assessment(ctx, sub.AssessmentID)
	if err != nil {
		return domain.ResultsView{}, err
	}
	answers, err := r.submissions.answers(ctx, sub.ID)
	if err != nil {
		return domain.ResultsView{}, err
	}
	sortByPresentation(answers, sub.QuestionOrder)

	feedback := make([]domain.Feedback, 0, len(answers))
	for _, a := range answers {
		q, ok := assessment.Question(a.QuestionID)
		if !ok {
			return domain.ResultsView{}, domain.ErrQuestionNotFound
		}
		feedback = append(feedback, domain.Feedback{
			QuestionID:    q.ID,
			Question:      q.Text,
			YourAnswer:    a.Value,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     a.IsCorrect,
			Explanation:   r.explain(ctx, q, a),
		})
	}

	view := domain.ResultsView{
		SubmissionID: sub.ID,
		AssessmentID: sub.AssessmentID,
		Score:        *sub.Score,
		IsPassed:     *sub.IsPassed,
		PassingScore: assessment.Threshold(),
		Feedback:     feedback,
	}
	if r.cache != nil {
		if err := r.cache.PutResults(ctx, view); err != nil {
			r.logger.Warn("results cache write failed", "submission_id", sub.ID, "err", err)
		}
	}
	return view, nil
}

func (r *ResultsAggregator) explain(ctx context.Context, q domain.Question, a domain.Answer) string {
	text, err := r.explainer.Explain(ctx, q, a)
	if err != nil {
		r.logger.Debug("explainer failed", "question_id", q.ID, "err", err)
		return NoExplanation
	}
	if text == "" {
		return NoExplanation
	}
	return text
}

// sortByPresentation orders answers by the submission's question order; answers to
// questions outside that order keep their recording order at the end.
func sortByPresentation(answers []domain.Answer, order []string) {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	pos := func(a domain.Answer) int {
		if i, ok := rank[a.QuestionID]; ok {
			return i
		}
		return len(order)
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return pos(answers[i]) < pos(answers[j])
	})
}
