package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"kimichat/kimichat/utils/types"
)

func relayStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.StatusResponse{Status: "ok", Configured: true, Model: "moonshotai/kimi-k2"})
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer demo" {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(types.ErrorResponse{Error: "demo mode", IsDemo: true})
			return
		}
		var req types.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(types.ErrorResponse{Error: "Messages array is required"})
			return
		}
		if !req.Stream {
			json.NewEncoder(w).Encode(types.ChatResponse{
				Success: true,
				Message: types.ChatMessage{Role: "assistant", Content: "Hello, world"},
				Model:   "moonshotai/kimi-k2",
			})
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range []string{
			"data: {\"content\":\"Hello\"}\n\n",
			": keep-alive\n\n",
			"data: {\"content\":\", world\"}\n\n",
			"data: [DONE]\n\n",
		} {
			w.Write([]byte(frame))
			flusher.Flush()
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStatus(t *testing.T) {
	c := New(relayStub(t).URL + "/")
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Configured || st.Model != "moonshotai/kimi-k2" {
		t.Errorf("status = %+v", st)
	}
}

func TestClientComplete(t *testing.T) {
	c := New(relayStub(t).URL)
	resp, err := c.Complete(context.Background(), []types.ChatMessage{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !resp.Success || resp.Message.Content != "Hello, world" {
		t.Errorf("response = %+v", resp)
	}
}

func TestClientStream(t *testing.T) {
	c := New(relayStub(t).URL)
	var got []string
	err := c.Stream(context.Background(), []types.ChatMessage{{Role: "user", Content: "hi"}}, func(d string) {
		got = append(got, d)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Hello", ", world"}) {
		t.Errorf("deltas = %q", got)
	}
}

func TestClientAPIErrors(t *testing.T) {
	srv := relayStub(t)

	_, err := New(srv.URL).Complete(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Messages array is required" {
		t.Errorf("expected 400 APIError, got %v", err)
	}

	err = New(srv.URL, WithToken("demo")).Stream(context.Background(), []types.ChatMessage{{Role: "user", Content: "hi"}}, func(string) {})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable || !apiErr.IsDemo {
		t.Errorf("expected demo APIError, got %v", err)
	}
}
