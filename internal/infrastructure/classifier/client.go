// Package classifier is the HTTP client for the external classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
	"civicdesk/internal/infrastructure/metrics"
	"civicdesk/internal/ports"
)

const (
	TextPath  = "/predict-category"
	AudioPath = "/predict-audio"

	modeText  = "text"
	modeAudio = "audio"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// TextRequest is the /predict-category request body.
type TextRequest struct {
	Description string `json:"description"`
}

// Prediction is the response of both endpoints. OriginalText is the transcription
// for audio and an echo of the input for text.
type Prediction struct {
	Category      string `json:"category"`
	Priority      string `json:"priority"`
	Sentiment     string `json:"sentiment"`
	EstimatedTime string `json:"estimated_time"`
	OriginalText  string `json:"original_text,omitempty"`
	Error         string `json:"error,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.Classifier = (*Client)(nil)

// New builds a client. A zero timeout means no client-side deadline beyond ctx.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("classifier base url must be absolute, got %q", baseURL)
	}
	return &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) ClassifyText(ctx context.Context, description string) (enrichment grievance.Enrichment, err error) {
	started := time.Now()
	defer func() { metrics.ObserveClassifier(modeText, started, err) }()

	body, err := json.Marshal(TextRequest{Description: description})
	if err != nil {
		return grievance.Enrichment{}, grievance.ClassificationError(errs.Wrap(err, "encode text request"))
	}

	prediction, err := c.post(ctx, TextPath, "application/json", bytes.NewReader(body))
	if err != nil {
		return grievance.Enrichment{}, grievance.ClassificationError(err)
	}
	enrichment, err = prediction.enrichment()
	if err != nil {
		return grievance.Enrichment{}, grievance.ClassificationError(err)
	}
	return enrichment, nil
}

// ClassifyAudio uploads the recording as multipart field "file". The transcription becomes the description.
func (c *Client) ClassifyAudio(ctx context.Context, audio ports.AudioInput) (out ports.AudioClassification, err error) {
	started := time.Now()
	defer func() { metrics.ObserveClassifier(modeAudio, started, err) }()

	if len(audio.Data) == 0 {
		return ports.AudioClassification{}, grievance.ClassificationError(errors.New("audio payload is empty"))
	}

	body, contentType, err := encodeAudio(audio)
	if err != nil {
		return ports.AudioClassification{}, grievance.ClassificationError(err)
	}

	prediction, err := c.post(ctx, AudioPath, contentType, body)
	if err != nil {
		return ports.AudioClassification{}, grievance.ClassificationError(err)
	}
	enrichment, err := prediction.enrichment()
	if err != nil {
		return ports.AudioClassification{}, grievance.ClassificationError(err)
	}
	transcript := strings.TrimSpace(prediction.OriginalText)
	if transcript == "" {
		return ports.AudioClassification{}, grievance.ClassificationError(&grievance.FieldError{Fields: []string{"original_text"}})
	}
	return ports.AudioClassification{Enrichment: enrichment, TranscribedText: transcript}, nil
}

func (c *Client) post(ctx context.Context, path string, contentType string, body io.Reader) (Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return Prediction{}, errs.Wrap(err, "build classifier request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, errs.Wrapf(err, "call %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Prediction{}, errs.Wrapf(err, "read %s response", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Prediction{}, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, snippet(raw))
	}

	var prediction Prediction
	if err := json.Unmarshal(raw, &prediction); err != nil {
		return Prediction{}, errs.Wrapf(err, "decode %s response", path)
	}
	return prediction, nil
}

func (p Prediction) enrichment() (grievance.Enrichment, error) {
	if msg := strings.TrimSpace(p.Error); msg != "" {
		return grievance.Enrichment{}, fmt.Errorf("classifier reported error: %s", msg)
	}

	enrichment := grievance.Enrichment{
		Category:      strings.TrimSpace(p.Category),
		Priority:      grievance.Priority(strings.TrimSpace(p.Priority)),
		Sentiment:     strings.TrimSpace(p.Sentiment),
		EstimatedTime: strings.TrimSpace(p.EstimatedTime),
	}
	if err := enrichment.Validate(); err != nil {
		return grievance.Enrichment{}, err
	}
	enrichment.Priority, _ = grievance.ParsePriority(string(enrichment.Priority))
	return enrichment, nil
}

func encodeAudio(audio ports.AudioInput) (io.Reader, string, error) {
	filename := strings.TrimSpace(audio.Filename)
	if filename == "" {
		filename = "recording.wav"
	}
	contentType := strings.TrimSpace(audio.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", errs.Wrap(err, "create multipart part")
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", errs.Wrap(err, "write audio part")
	}
	if err := writer.Close(); err != nil {
		return nil, "", errs.Wrap(err, "close multipart writer")
	}
	return &buf, writer.FormDataContentType(), nil
}

const snippetLimit = 200

// snippet shortens an upstream body for error text without splitting a rune.
func snippet(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) <= snippetLimit {
		return text
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
