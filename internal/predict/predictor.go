package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shelf/internal/config"
	"shelf/internal/logging"
	"shelf/internal/rules"
	"shelf/internal/scanner"
)

const defaultTimeout = 5 * time.Second

// Disabled is the predictor used when no sidecar is configured. It never
// suggests and never errors.
type Disabled struct{}

// Predict always returns an empty suggestion.
func (Disabled) Predict(context.Context, rules.FileInfo) (scanner.Suggestion, error) {
	return scanner.Suggestion{}, nil
}

// HTTPPredictor is a client for a local inference sidecar. One POST per
// file; the response carries a destination and the model's confidence.
type HTTPPredictor struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the predictor.
type Option func(*HTTPPredictor)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *HTTPPredictor) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewHTTPPredictor builds a sidecar client from the predictions config
// section. The endpoint must be set.
func NewHTTPPredictor(cfg *config.Config, logger *slog.Logger, opts ...Option) (*HTTPPredictor, error) {
	endpoint := strings.TrimSpace(cfg.Predictions.Endpoint)
	if endpoint == "" {
		return nil, errors.New("predictions endpoint is empty")
	}
	timeout := defaultTimeout
	if cfg.Predictions.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Predictions.TimeoutSeconds) * time.Second
	}
	predictor := &HTTPPredictor{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "predict"),
	}
	for _, opt := range opts {
		opt(predictor)
	}
	return predictor, nil
}

// FromConfig selects the predictor implementation: the sidecar client when
// predictions are switched on and an endpoint is configured, Disabled
// otherwise.
func FromConfig(cfg *config.Config, logger *slog.Logger) scanner.Predictor {
	if !cfg.Features.Predictions || strings.TrimSpace(cfg.Predictions.Endpoint) == "" {
		return Disabled{}
	}
	predictor, err := NewHTTPPredictor(cfg, logger)
	if err != nil {
		return Disabled{}
	}
	return predictor
}

type predictRequest struct {
	Name       string `json:"name"`
	Extension  string `json:"extension"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

type predictResponse struct {
	Destination string  `json:"destination"`
	Confidence  float64 `json:"confidence"`
}

// Predict posts the file's attributes to the sidecar and returns its scored
// destination. Confidence is clamped to [0, 1]; the caller applies the
// acceptance threshold.
func (p *HTTPPredictor) Predict(ctx context.Context, file rules.FileInfo) (scanner.Suggestion, error) {
	payload := predictRequest{
		Name:      file.Name,
		Extension: strings.ToLower(file.Extension),
		SizeBytes: file.SizeBytes,
	}
	if !file.ModifiedAt.IsZero() {
		payload.ModifiedAt = file.ModifiedAt.UTC().Format(time.RFC3339)
	}

	var parsed predictResponse
	if err := p.post(ctx, payload, &parsed); err != nil {
		return scanner.Suggestion{}, err
	}

	suggestion := scanner.Suggestion{
		Destination: strings.TrimSpace(parsed.Destination),
		Confidence:  parsed.Confidence,
	}
	if suggestion.Confidence < 0 {
		suggestion.Confidence = 0
	}
	if suggestion.Confidence > 1 {
		suggestion.Confidence = 1
	}
	return suggestion, nil
}

// HealthCheck sends a canary prediction so doctor can verify the sidecar is
// reachable and speaking the protocol.
func (p *HTTPPredictor) HealthCheck(ctx context.Context) error {
	var parsed predictResponse
	return p.post(ctx, predictRequest{Name: "healthcheck.txt", Extension: "txt"}, &parsed)
}

func (p *HTTPPredictor) post(ctx context.Context, payload predictRequest, out *predictResponse) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("predict request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("predict request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("predict request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("predict request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("predict request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("predict request: decode response: %w", err)
	}
	return nil
}
