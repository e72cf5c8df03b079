// Package devclassifier is a keyword-based stand-in for the classification
// service, good enough to run the whole stack on a laptop.
package devclassifier

import (
	"strings"
	"unicode"

	domain "civicdesk/internal/domain/grievance"
)

type categoryRule struct {
	category string
	keywords []string
}

// Checked in order; the first matching rule wins.
var categoryRules = []categoryRule{
	{category: "Electricity", keywords: []string{"light", "pole", "dark", "electricity", "power", "voltage", "wire", "spark"}},
	{category: "Water", keywords: []string{"water", "drainage", "leak", "pipe", "sewage", "flood", "drink", "tap"}},
	{category: "Roads", keywords: []string{"road", "pothole", "street", "asphalt", "traffic", "jam", "highway"}},
	{category: "Sanitation", keywords: []string{"garbage", "trash", "dustbin", "waste", "clean", "smell", "dump"}},
	{category: "Police", keywords: []string{"theft", "stole", "lost", "missing", "crime", "fight", "police", "robbery", "danger"}},
}

const defaultCategory = "General"

var urgentKeywords = []string{"danger", "accident", "fire", "death", "blood", "broken", "blocked", "kill", "attack", "spark"}

var urgentCategories = map[string]bool{"Police": true, "Fire": true, "Medical": true}

var (
	positiveWords = wordSet("good", "great", "thanks", "thank", "happy", "fixed", "clean", "nice", "excellent", "quick", "helpful", "working")
	negativeWords = wordSet("bad", "terrible", "horrible", "awful", "worst", "dirty", "angry", "broken", "dangerous", "unsafe",
		"smell", "stinks", "never", "no", "not", "overflowing", "leaking", "useless", "poor", "sick")
)

var estimates = map[domain.Priority]string{
	domain.PriorityHigh:   "Within 1 Hour",
	domain.PriorityMedium: "Within 24 Hours",
	domain.PriorityLow:    "Within 1 Week",
}

// Classify assigns category, priority, sentiment and an estimate to free text.
func Classify(text string) domain.Enrichment {
	lower := strings.ToLower(text)

	category := defaultCategory
	for _, rule := range categoryRules {
		if containsAny(lower, rule.keywords) {
			category = rule.category
			break
		}
	}

	score := polarity(lower)
	sentiment := "Neutral"
	switch {
	case score < -0.1:
		sentiment = "Negative"
	case score > 0.1:
		sentiment = "Positive"
	}

	priority := domain.PriorityLow
	switch {
	case containsAny(lower, urgentKeywords) || urgentCategories[category]:
		priority = domain.PriorityHigh
	case score < -0.5:
		priority = domain.PriorityMedium
	}

	return domain.Enrichment{
		Category:      category,
		Priority:      priority,
		Sentiment:     sentiment,
		EstimatedTime: estimates[priority],
	}
}

// polarity is in [-1, 1]: the balance of positive and negative words.
func polarity(lower string) float64 {
	var pos, neg int
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		switch {
		case positiveWords[word]:
			pos++
		case negativeWords[word]:
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
