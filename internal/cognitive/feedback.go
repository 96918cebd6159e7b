package cognitive

// ResultType classifies an explanation decision against user feedback.
type ResultType string

const (
	TruePositive  ResultType = "true_positive"
	FalsePositive ResultType = "false_positive"
	TrueNegative  ResultType = "true_negative"
	FalseNegative ResultType = "false_negative"
)

// Feedback is what a user reports after an interaction. Ratings are 0-5.
type Feedback struct {
	ExplanationNeeded   bool `json:"explanation_needed"`
	ExplanationProvided bool `json:"explanation_provided"`
	Helpfulness         int  `json:"helpfulness_rating"`
	Satisfaction        int  `json:"satisfaction_rating"`
	LoadRating          int  `json:"cognitive_load_rating"`
}

// FeedbackEvaluation scores one piece of feedback. Scores are in [0, 1].
type FeedbackEvaluation struct {
	Result        ResultType `json:"result_type"`
	Effectiveness float64    `json:"effectiveness_score"`
	Satisfaction  float64    `json:"user_satisfaction"`
	LoadReduction float64    `json:"cognitive_load_reduction"`
}

// EvaluateFeedback places a decision in the confusion matrix and normalizes
// the ratings.
func EvaluateFeedback(f Feedback) FeedbackEvaluation {
	var r ResultType
	switch {
	case f.ExplanationProvided && f.ExplanationNeeded:
		r = TruePositive
	case f.ExplanationProvided:
		r = FalsePositive
	case !f.ExplanationNeeded:
		r = TrueNegative
	default:
		r = FalseNegative
	}
	return FeedbackEvaluation{
		Result:        r,
		Effectiveness: ratio(f.Helpfulness),
		Satisfaction:  ratio(f.Satisfaction),
		LoadReduction: ratio(f.LoadRating),
	}
}

func ratio(rating int) float64 {
	return float64(min(max(rating, 0), 5)) / 5
}
