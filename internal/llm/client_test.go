package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kithbot/kith/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Defaults().OpenAI
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL
	client, err := NewClient(nil, cfg)
	if err != nil {
		t.Fatalf("new llm client: %v", err)
	}
	return client
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(nil, config.Defaults().OpenAI); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestClientComplete(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"type\":\"fact\"} "}}]}`))
	})

	req := NewRequest(config.Defaults().OpenAI.Classifier, "classify", "Anna likes tea")
	req.JSON = true
	out, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"type":"fact"}` {
		t.Fatalf("unexpected content: %q", out)
	}
	if got["model"] != "gpt-4o-mini" {
		t.Errorf("unexpected model: %v", got["model"])
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", got["messages"])
	}
	format, _ := got["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", got["response_format"])
	}
	temperature, ok := got["temperature"]
	if !ok || temperature != float64(0) {
		t.Errorf("classifier must send temperature 0, got %v (present=%v)", temperature, ok)
	}
}

func TestClientCompleteSendsTierSampling(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Buy him a rod."}}]}`))
	})

	req := NewRequest(config.Defaults().OpenAI.Answer, "answer", "What should I give Oleh?")
	if _, err := client.Complete(context.Background(), req); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got["temperature"] != 0.7 {
		t.Errorf("answer tier must send temperature 0.7, got %v", got["temperature"])
	}
	if got["max_tokens"] != float64(300) {
		t.Errorf("answer tier must send max_tokens 300, got %v", got["max_tokens"])
	}
	if _, ok := got["response_format"]; ok {
		t.Errorf("free-text request must not set response_format, got %v", got["response_format"])
	}
}

func TestClientCompleteEmptyChoices(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Prompt: "hi"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClientCompleteServiceError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})
	if _, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Prompt: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestClientTranscribe(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if lang := r.FormValue("language"); lang != "uk" {
			t.Errorf("unexpected language %q", lang)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("unexpected model %q", model)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Олег любить каву"}`))
	})

	text, err := client.Transcribe(context.Background(), strings.NewReader("OggS"), "voice.ogg")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "Олег любить каву" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestNewRequestFromTier(t *testing.T) {
	tier := config.ModelTier{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 300}
	req := NewRequest(tier, "sys", "prompt")
	if req.Model != "gpt-4o" || req.Temperature != 0.7 || req.MaxTokens != 300 || req.System != "sys" || req.Prompt != "prompt" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestStripCodeFence(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	if got := StripCodeFence(in); got != `{"a":1}` {
		t.Fatalf("StripCodeFence = %q", got)
	}
}
