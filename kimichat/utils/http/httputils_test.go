package httputils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostJSONSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Title") != "Kimi" {
			t.Errorf("missing X-Title header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(map[string]string{"echo": in["q"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := PostJSON(context.Background(), srv.Client(), srv.URL, map[string]string{"X-Title": "Kimi"}, map[string]string{"q": "hi"}, &out)
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out["echo"] != "hi" {
		t.Errorf("expected echo hi, got %q", out["echo"])
	}
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no credits"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.Client(), srv.URL, nil, map[string]string{}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", se.StatusCode)
	}
	if se.Body != `{"error":"no credits"}` {
		t.Errorf("unexpected body %q", se.Body)
	}
}

func TestPostStreamReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("expected event-stream accept header")
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	body, err := PostStream(context.Background(), srv.Client(), srv.URL, nil, map[string]string{})
	if err != nil {
		t.Fatalf("PostStream: %v", err)
	}
	defer body.Close()
	b, _ := io.ReadAll(body)
	if string(b) != "data: [DONE]\n\n" {
		t.Errorf("unexpected body %q", b)
	}
}
