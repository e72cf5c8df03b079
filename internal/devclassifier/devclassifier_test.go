package devclassifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/infrastructure/classifier"
	"civicdesk/internal/ports"
)

func TestClassifyRules(t *testing.T) {
	cases := []struct {
		text     string
		category string
		priority domain.Priority
	}{
		{text: "Streetlight is dark near temple", category: "Electricity", priority: domain.PriorityLow},
		{text: "Live wire broken on the pole", category: "Electricity", priority: domain.PriorityHigh},
		{text: "Drainage needs attention near the school", category: "Water", priority: domain.PriorityLow},
		{text: "Huge pothole on main road", category: "Roads", priority: domain.PriorityLow},
		{text: "Garbage dump near the bus stand", category: "Sanitation", priority: domain.PriorityLow},
		{text: "My bike was stolen yesterday", category: "Police", priority: domain.PriorityHigh},
		{text: "Stray dogs everywhere", category: "General", priority: domain.PriorityLow},
		{text: "Terrible horrible useless service", category: "General", priority: domain.PriorityMedium},
	}
	for _, tc := range cases {
		got := Classify(tc.text)
		if got.Category != tc.category || got.Priority != tc.priority {
			t.Fatalf("Classify(%q) = %s/%s, want %s/%s", tc.text, got.Category, got.Priority, tc.category, tc.priority)
		}
		if err := got.Validate(); err != nil {
			t.Fatalf("Classify(%q) invalid enrichment: %v", tc.text, err)
		}
	}
}

func TestClassifySentimentAndEstimate(t *testing.T) {
	got := Classify("Thanks, the water tap was fixed quickly, great work")
	if got.Sentiment != "Positive" {
		t.Fatalf("sentiment = %q, want Positive", got.Sentiment)
	}
	if got.EstimatedTime != "Within 1 Week" {
		t.Fatalf("estimate = %q, want Within 1 Week", got.EstimatedTime)
	}
	if Classify("fire near the market").EstimatedTime != "Within 1 Hour" {
		t.Fatalf("high priority estimate mismatch")
	}
}

func TestHandlerServesClientContract(t *testing.T) {
	server := httptest.NewServer(NewHandler())
	defer server.Close()

	client, err := classifier.New(server.URL, time.Second)
	if err != nil {
		t.Fatalf("classifier.New() error = %v", err)
	}

	got, err := client.ClassifyText(context.Background(), "Sewage pipe leak on 3rd street")
	if err != nil {
		t.Fatalf("ClassifyText() error = %v", err)
	}
	if got.Category != "Water" {
		t.Fatalf("category = %q, want Water", got.Category)
	}

	_, err = client.ClassifyAudio(context.Background(), ports.AudioInput{Filename: "a.wav", Data: []byte("x")})
	if !errors.Is(err, domain.ErrClassification) {
		t.Fatalf("ClassifyAudio() error = %v, want ErrClassification", err)
	}
}

func TestHandlerRejectsEmptyDescription(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, classifier.TextPath, strings.NewReader(`{"description":"  "}`))
	NewHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
