package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/redlinehq/redline/pkg/provider/llm"
)

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPrompt checks that the system prompt is injected as the
// leading system-role message.
func TestBuildParams_SystemPrompt(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a proofreader.",
		Messages: []llm.Message{
			{Role: "user", Content: "He go home."},
		},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("expected first role system, got %q", params.Messages[0].Role)
	}
	if params.Messages[0].ContentString() != "You are a proofreader." {
		t.Errorf("unexpected system content: %q", params.Messages[0].ContentString())
	}
	if params.Messages[1].Role != "user" {
		t.Errorf("expected second role user, got %q", params.Messages[1].Role)
	}
}

// TestBuildParams_NoSystemPrompt checks that no system message is added when
// the prompt is empty.
func TestBuildParams_NoSystemPrompt(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})
	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(params.Messages))
	}
}

// TestBuildParams_Model checks that the configured model is carried through.
func TestBuildParams_Model(t *testing.T) {
	p := &Provider{model: "claude-3-5-haiku-latest"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})
	if params.Model != "claude-3-5-haiku-latest" {
		t.Errorf("expected model claude-3-5-haiku-latest, got %q", params.Model)
	}
}

// TestBuildParams_Temperature checks that a non-zero temperature is set and a
// zero temperature falls back to the provider default (nil).
func TestBuildParams_Temperature(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}

	params := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "Hi"}},
		Temperature: 0.2,
	})
	if params.Temperature == nil || *params.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", params.Temperature)
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})
	if params.Temperature != nil {
		t.Errorf("expected nil temperature for zero value, got %v", *params.Temperature)
	}
}

// TestBuildParams_MaxTokens checks MaxTokens passthrough.
func TestBuildParams_MaxTokens(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(llm.CompletionRequest{
		Messages:  []llm.Message{{Role: "user", Content: "Hi"}},
		MaxTokens: 512,
	})
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %v", params.MaxTokens)
	}
}

// ── createBackend ─────────────────────────────────────────────────────────────

// TestCreateBackend_SupportedProviders checks every documented provider name
// resolves to a backend.
func TestCreateBackend_SupportedProviders(t *testing.T) {
	names := []string{
		"openai", "anthropic", "gemini", "ollama", "deepseek",
		"mistral", "groq", "llamacpp", "llamafile",
	}
	for _, name := range names {
		if _, err := createBackend(name, anyllmlib.WithAPIKey("dummy")); err != nil {
			t.Errorf("createBackend(%q): unexpected error: %v", name, err)
		}
	}
}

// TestCreateBackend_CaseInsensitive checks provider name matching ignores case.
func TestCreateBackend_CaseInsensitive(t *testing.T) {
	if _, err := createBackend("OpenAI", anyllmlib.WithAPIKey("dummy")); err != nil {
		t.Errorf("unexpected error for mixed-case name: %v", err)
	}
}

// TestCreateBackend_Unsupported checks unknown names produce a helpful error.
func TestCreateBackend_Unsupported(t *testing.T) {
	_, err := createBackend("not-a-provider", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	if !strings.Contains(err.Error(), "not-a-provider") {
		t.Errorf("error should name the rejected provider: %v", err)
	}
}

// ── constructor validation ────────────────────────────────────────────────────

// TestNew_MissingProviderName ensures an empty provider name is rejected.
func TestNew_MissingProviderName(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty provider name")
	}
}

// TestNew_MissingModel ensures an empty model is rejected.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("openai", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_ModelID checks the model identifier is reported back.
func TestNew_ModelID(t *testing.T) {
	p, err := New("ollama", "llama3.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "llama3.2" {
		t.Errorf("ModelID() = %q, want llama3.2", p.ModelID())
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

// TestModelCapabilities checks context window and output limits for known
// model families plus the unknown-model defaults.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model         string
		contextWindow int
		maxOutput     int
	}{
		{"gpt-4o-mini", 128_000, 16_384},
		{"gpt-4o", 128_000, 16_384},
		{"gpt-4", 8_192, 4_096},
		{"gpt-3.5-turbo", 16_385, 4_096},
		{"o1-mini", 128_000, 65_536},
		{"o3-mini", 200_000, 100_000},
		{"claude-3-5-haiku-latest", 200_000, 8_192},
		{"claude-3-opus-20240229", 200_000, 4_096},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"gemini-2.0-flash", 1_048_576, 8_192},
		{"my-custom-model", 128_000, 4_096},
	}
	for _, tt := range tests {
		caps := modelCapabilities(tt.model)
		if caps.ContextWindow != tt.contextWindow {
			t.Errorf("%s: ContextWindow = %d, want %d", tt.model, caps.ContextWindow, tt.contextWindow)
		}
		if caps.MaxOutputTokens != tt.maxOutput {
			t.Errorf("%s: MaxOutputTokens = %d, want %d", tt.model, caps.MaxOutputTokens, tt.maxOutput)
		}
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

// TestCountTokens checks the approximation is positive and grows with input.
func TestCountTokens(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}

	short, err := p.CountTokens([]llm.Message{{Role: "user", Content: "Hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	long, err := p.CountTokens([]llm.Message{
		{Role: "user", Content: strings.Repeat("some longer text ", 50)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if short <= 0 {
		t.Errorf("expected positive count, got %d", short)
	}
	if long <= short {
		t.Errorf("longer input should count more tokens: short=%d long=%d", short, long)
	}
}
