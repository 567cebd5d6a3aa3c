package classify

import (
	"strings"
)

// categoryRule scores one label by keyword hits
type categoryRule struct {
	Label    string
	Keywords []string
}

// ruleTable is evaluated in order; earlier entries win score ties.
// Adding a category means adding a row, nothing else.
var ruleTable = []categoryRule{
	{
		Label: LabelSpam,
		Keywords: []string{
			"unsubscribe", "click here", "limited time", "act now",
			"free money", "guarantee", "winner", "congratulations",
			"viagra", "casino", "lottery", "inheritance",
		},
	},
	{
		Label: LabelImportant,
		Keywords: []string{
			"urgent", "important", "asap", "deadline", "action required",
			"verification", "security", "password", "account", "confirm",
			"invoice", "payment", "bill", "receipt",
		},
	},
	{
		Label: LabelWork,
		Keywords: []string{
			"meeting", "project", "deadline", "report", "team", "client",
			"business", "office", "conference", "schedule", "proposal",
			"contract", "budget", "quarterly",
		},
	},
	{
		Label: LabelPersonal,
		Keywords: []string{
			"family", "friend", "vacation", "birthday", "dinner",
			"weekend", "party", "holiday", "personal", "home",
		},
	},
}

// maxRuleConfidence caps rule-based confidence below the remote model's range
const maxRuleConfidence = 0.8

// confidencePerHit is the confidence contributed by each keyword match
const confidencePerHit = 0.2

// RuleBasedClassify classifies a message by keyword scoring. It is the
// deterministic fallback when the remote classifier is unavailable.
func RuleBasedClassify(subject, content string) Result {
	text := strings.ToLower(subject + " " + content)

	bestLabel := ""
	bestScore := 0
	for _, rule := range ruleTable {
		score := 0
		for _, keyword := range rule.Keywords {
			if strings.Contains(text, keyword) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestLabel = rule.Label
		}
	}

	if bestScore == 0 {
		return Result{
			Label:      LabelReview,
			Confidence: 0.5,
			Reasoning:  "No clear classification patterns found - requires manual review",
			Fallback:   true,
		}
	}

	confidence := confidencePerHit * float64(bestScore)
	if confidence > maxRuleConfidence {
		confidence = maxRuleConfidence
	}

	return Result{
		Label:      bestLabel,
		Confidence: confidence,
		Reasoning:  "Matched " + bestLabel + " keyword patterns",
		Fallback:   true,
	}
}
