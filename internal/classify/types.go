package classify

// Result is the outcome of classifying one message
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`

	// Fallback is true when the result came from rule-based
	// classification instead of the remote model.
	Fallback bool `json:"fallback,omitempty"`
}

// Input is one message submitted for classification
type Input struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// HealthStatus is the classifier service health response
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Label values produced by both the remote model and the rule table
const (
	LabelSpam      = "Spam"
	LabelImportant = "Important"
	LabelWork      = "Work"
	LabelPersonal  = "Personal"
	LabelReview    = "Review"
)
