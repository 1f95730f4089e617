package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 1 << 20

// HTTPClassifier calls the sentiment microservice's /analyze endpoint.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier uses http.DefaultClient when client is nil. Deadlines come from the context.
func NewHTTPClassifier(url string, client *http.Client) *HTTPClassifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClassifier{url: url, client: client}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// analyzeResponse accepts both the service's field names and the label/riskFlag spelling.
type analyzeResponse struct {
	Emotion            string   `json:"emotion"`
	Label              string   `json:"label"`
	Confidence         *float64 `json:"confidence"`
	NeedsImmediateHelp *bool    `json:"needs_immediate_help"`
	RiskFlag           *bool    `json:"riskFlag"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Raw, error) {
	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return Raw{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Raw{}, fmt.Errorf("build sentiment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Raw{}, fmt.Errorf("call sentiment service: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Raw{}, fmt.Errorf("read sentiment response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Raw{}, fmt.Errorf("sentiment service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded analyzeResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Raw{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	raw := Raw{
		Label:      decoded.Label,
		Confidence: decoded.Confidence,
		RiskFlag:   decoded.RiskFlag,
	}
	if raw.Label == "" {
		raw.Label = decoded.Emotion
	}
	if raw.RiskFlag == nil {
		raw.RiskFlag = decoded.NeedsImmediateHelp
	}
	return raw, nil
}
