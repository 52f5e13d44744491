package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleResponse = `{
  "right": {
    "volume_total_mm3": 1234.567,
    "istmo_position_norm": 0.42,
    "sections_used": 60,
    "s_norm": [0, 0.5, 1],
    "a_norm": [1, 0.3, 0.8]
  },
  "left": {
    "volume_total_mm3": 1100.0,
    "istmo_position_norm": 0.47,
    "s_norm": [0, 1],
    "a_norm": [0.9, 1]
  },
  "comparison": {
    "total_volume_diff_percent": 11.5,
    "istmo_shift_mm": -0.8
  }
}`

func TestAnalyzeSuccess(t *testing.T) {
	var gotRight, gotLeft, gotName string
	var gotID, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotID = r.Header.Get("X-Request-ID")
		gotAgent = r.Header.Get("User-Agent")

		right, header, err := r.FormFile("right")
		if err != nil {
			t.Errorf("missing right part: %v", err)
			return
		}
		b, _ := io.ReadAll(right)
		gotRight, gotName = string(b), header.Filename

		left, _, err := r.FormFile("left")
		if err != nil {
			t.Errorf("missing left part: %v", err)
			return
		}
		b, _ = io.ReadAll(left)
		gotLeft = string(b)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer server.Close()

	client := New(server.URL, server.Client())
	res, err := client.Analyze(context.Background(),
		Upload{Name: "right.stl", Data: []byte("RIGHT")},
		Upload{Name: "left.stl", Data: []byte("LEFT")})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if gotRight != "RIGHT" || gotLeft != "LEFT" || gotName != "right.stl" {
		t.Errorf("multipart failed: got right=%q left=%q name=%q", gotRight, gotLeft, gotName)
	}
	if gotID == "" {
		t.Errorf("X-Request-ID header missing")
	}
	if !strings.HasPrefix(gotAgent, "canalview/") {
		t.Errorf("User-Agent failed: expected canalview/..., got %q", gotAgent)
	}

	if len(res.Right.SNorm) != 3 || len(res.Left.ANorm) != 2 {
		t.Errorf("profile decode failed: got %v / %v", res.Right.SNorm, res.Left.ANorm)
	}
	if _, ok := res.Right.Fields["s_norm"]; ok {
		t.Errorf("profile sequences must not remain in Fields")
	}
	if v, ok := res.Left.Float("istmo_position_norm"); !ok || v != 0.47 {
		t.Errorf("Float failed: expected 0.47, got %v", v)
	}
	if n, ok := res.Comparison.Fields["istmo_shift_mm"].(json.Number); !ok || n.String() != "-0.8" {
		t.Errorf("comparison decode failed: got %v", res.Comparison.Fields["istmo_shift_mm"])
	}
}

func TestAnalyzeServerError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"server message", http.StatusBadRequest, `{"error": "Right file is not a mesh"}`, "Right file is not a mesh"},
		{"no message", http.StatusInternalServerError, `{}`, GenericMessage},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, GenericMessage},
		{"error payload on 200", http.StatusOK, `{"error": "analysis failed"}`, "analysis failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := New(server.URL, nil).Analyze(context.Background(), Upload{Name: "r.stl"}, Upload{Name: "l.stl"})
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected RequestError, got %v", err)
			}
			if reqErr.Message != tt.expected {
				t.Errorf("Message failed: expected %q, got %q", tt.expected, reqErr.Message)
			}
			if reqErr.Status != tt.status {
				t.Errorf("Status failed: expected %d, got %d", tt.status, reqErr.Status)
			}
		})
	}
}

func TestAnalyzeMalformedPayload(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not json", `not json`, "body"},
		{"missing left", `{"right": {}, "comparison": {}}`, "left"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := New(server.URL, nil).Analyze(context.Background(), Upload{Name: "r.stl"}, Upload{Name: "l.stl"})
			var payloadErr *PayloadError
			if !errors.As(err, &payloadErr) {
				t.Fatalf("expected PayloadError, got %v", err)
			}
			if payloadErr.Field != tt.field {
				t.Errorf("Field failed: expected %s, got %s", tt.field, payloadErr.Field)
			}
		})
	}
}

func TestAnalyzeMalformedProfileKeepsFields(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"series not array", `{"right": {"volume_total_mm3": 10}, "left": {"volume_total_mm3": 12, "s_norm": "oops", "a_norm": [1]}, "comparison": {}}`, "s_norm"},
		{"series element", `{"right": {"volume_total_mm3": 10}, "left": {"volume_total_mm3": 12, "s_norm": [0, 1], "a_norm": [0, "x"]}, "comparison": {}}`, "a_norm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			res, err := New(server.URL, nil).Analyze(context.Background(), Upload{Name: "r.stl"}, Upload{Name: "l.stl"})
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}

			var payloadErr *PayloadError
			if !errors.As(res.Left.ProfileErr, &payloadErr) {
				t.Fatalf("expected PayloadError in ProfileErr, got %v", res.Left.ProfileErr)
			}
			if payloadErr.Field != tt.field {
				t.Errorf("Field failed: expected %s, got %s", tt.field, payloadErr.Field)
			}
			if res.Left.SNorm != nil || res.Left.ANorm != nil {
				t.Errorf("malformed profile must be empty, got %v / %v", res.Left.SNorm, res.Left.ANorm)
			}
			if v, ok := res.Left.Float("volume_total_mm3"); !ok || v != 12 {
				t.Errorf("Float failed: expected 12, got %v", v)
			}
			if _, ok := res.Left.Fields["s_norm"]; ok {
				t.Errorf("profile sequences must not remain in Fields")
			}
			if res.Right.ProfileErr != nil {
				t.Errorf("right profile failed: expected no error, got %v", res.Right.ProfileErr)
			}
		})
	}
}

func TestAnalyzeMissingComparison(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"right": {}, "left": {}}`)
	}))
	defer server.Close()

	res, err := New(server.URL, nil).Analyze(context.Background(), Upload{Name: "r.stl"}, Upload{Name: "l.stl"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Comparison.Fields == nil {
		t.Errorf("missing comparison must decode as empty fields")
	}
}

func TestAnalyzeTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url, nil).Analyze(context.Background(), Upload{Name: "r.stl"}, Upload{Name: "l.stl"})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != 0 || reqErr.Message != GenericMessage {
		t.Errorf("transport error failed: got status %d message %q", reqErr.Status, reqErr.Message)
	}
}

func TestAnalyzeCanceled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(server.URL, nil).Analyze(ctx, Upload{Name: "r.stl"}, Upload{Name: "l.stl"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
