package audit

import (
	"os"
	"testing"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("OPENAI_API_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("OPENAI_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("MODEL_PROVIDER", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.tfai/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.tfai/config.yaml" {
			t.Errorf("expected '~/.tfai/config.yaml', got %q", got)
		}
	}
}

func TestRedactConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Config{
		Global: config.Global{
			Qdrant: config.QdrantConfig{APIKey: "qk-secret"},
			LLM:    config.LLMConfig{APIKey: "llm-secret"},
		},
		Projects: map[string]config.Project{
			"docs": {
				Sources: map[string]config.Source{
					"confluence": {
						"main": {"api_token": "tok-123", "base_url": "https://example.atlassian.net"},
					},
				},
			},
		},
	}

	redacted := RedactConfig(cfg)

	if redacted.Global.Qdrant.APIKey != "<redacted>" {
		t.Errorf("expected qdrant api key redacted, got %q", redacted.Global.Qdrant.APIKey)
	}
	if redacted.Global.LLM.APIKey != "<redacted>" {
		t.Errorf("expected llm api key redacted, got %q", redacted.Global.LLM.APIKey)
	}
	settings := redacted.Projects["docs"].Sources["confluence"]["main"]
	if settings["api_token"] != "<redacted>" {
		t.Errorf("expected api_token redacted, got %v", settings["api_token"])
	}
	if settings["base_url"] != "https://example.atlassian.net" {
		t.Errorf("expected base_url untouched, got %v", settings["base_url"])
	}

	if cfg.Global.Qdrant.APIKey != "qk-secret" {
		t.Errorf("RedactConfig must not mutate its input")
	}
}
