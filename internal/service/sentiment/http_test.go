package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
)

func TestHTTPClassifierServiceWireFormat(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		gotText = body.Text
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"emotion":"suicidal","confidence":0.91,"needs_immediate_help":true}`))
	}))
	defer srv.Close()

	adapter := NewAdapter(NewHTTPClassifier(srv.URL, srv.Client()), time.Second, nil)
	res := adapter.Classify(context.Background(), "I don't want to be here anymore")

	if gotText != "I don't want to be here anymore" {
		t.Fatalf("unexpected text forwarded: %q", gotText)
	}
	if res.Label != turn.Suicidal || res.Confidence != 0.91 || !res.RiskFlag {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestHTTPClassifierLabelFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"label":"anxiety","confidence":0.92,"riskFlag":false}`))
	}))
	defer srv.Close()

	res := NewAdapter(NewHTTPClassifier(srv.URL, nil), time.Second, nil).Classify(context.Background(), "x")
	if res.Label != turn.Anxiety || res.Confidence != 0.92 || res.RiskFlag {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestHTTPClassifierFailuresDegrade(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"Model not loaded"}`, http.StatusInternalServerError)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		},
		"slow": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			res := NewAdapter(NewHTTPClassifier(srv.URL, srv.Client()), 100*time.Millisecond, nil).Classify(context.Background(), "x")
			assertFallback(t, res)
		})
	}
}

func TestHTTPClassifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewAdapter(NewHTTPClassifier(url, nil), time.Second, nil).Classify(context.Background(), "x")
	assertFallback(t, res)
}
