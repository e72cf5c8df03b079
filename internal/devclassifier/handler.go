package devclassifier

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"civicdesk/internal/infrastructure/classifier"
)

const maxRequestBytes = 1 << 20

// NewHandler serves the classification contract the intake client expects.
func NewHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "keyword classifier active"})
	})
	r.Post(classifier.TextPath, predictCategory)
	r.Post(classifier.AudioPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotImplemented, classifier.Prediction{
			Error: "speech recognition is not available in the development classifier",
		})
	})
	return r
}

func predictCategory(w http.ResponseWriter, r *http.Request) {
	var req classifier.TextRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, classifier.Prediction{Error: "invalid json body"})
		return
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		writeJSON(w, http.StatusBadRequest, classifier.Prediction{Error: "description is required"})
		return
	}

	enrichment := Classify(description)
	writeJSON(w, http.StatusOK, classifier.Prediction{
		Category:      enrichment.Category,
		Priority:      string(enrichment.Priority),
		Sentiment:     enrichment.Sentiment,
		EstimatedTime: enrichment.EstimatedTime,
		OriginalText:  description,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
