package sentiment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
)

func responsesPayload(text string) string {
	encoded, _ := json.Marshal(text)
	return `{"id":"resp_1","object":"response","created_at":1700000000,"status":"completed","model":"test-model",` +
		`"output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed",` +
		`"content":[{"type":"output_text","text":` + string(encoded) + `,"annotations":[]}]}]}`
}

func TestOpenAIClassifierParsesStructuredOutput(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responsesPayload(`{"label":"depression","confidence":0.83,"needs_immediate_help":false}`)))
	}))
	defer srv.Close()

	classifier := NewOpenAIClassifier("test-key", srv.URL, "test-model")
	res := NewAdapter(classifier, time.Second, nil).Classify(context.Background(), "nothing matters anymore")

	if res.Outcome != turn.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%v)", res.Outcome, res.Err)
	}
	if res.Label != turn.Depression || res.Confidence != 0.83 || res.RiskFlag {
		t.Fatalf("unexpected result %+v", res)
	}
	if body["model"] != "test-model" {
		t.Fatalf("unexpected model in request: %v", body["model"])
	}
}

func TestOpenAIClassifierErrorDegradesWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer srv.Close()

	classifier := NewOpenAIClassifier("test-key", srv.URL, "test-model")
	res := NewAdapter(classifier, time.Second, nil).Classify(context.Background(), "x")
	assertFallback(t, res)
	if calls != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", calls)
	}
}

func TestClassificationSchemaIsStrict(t *testing.T) {
	if classificationSchema["additionalProperties"] != false {
		t.Fatalf("expected additionalProperties=false, got %v", classificationSchema["additionalProperties"])
	}
	required, ok := classificationSchema["required"].([]string)
	if !ok || len(required) != 3 {
		t.Fatalf("expected three required properties, got %v", classificationSchema["required"])
	}
}

func TestDecodeModelJSONExtractsObject(t *testing.T) {
	var out classificationOutput
	if err := decodeModelJSON("Sure! {\"label\":\"stress\",\"confidence\":0.5,\"needs_immediate_help\":false} done", &out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if out.Label != "stress" {
		t.Fatalf("unexpected label %q", out.Label)
	}
	if err := decodeModelJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty output")
	}
}
