// Package audit provides a structured audit logger for CLI command invocations,
// and the secret-redaction helpers backing the `config` command's requirement
// to print resolved configuration with secrets redacted.
//
// Secrets are logged as presence/absence only — never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
)

// secretEnvKeys lists environment variable names whose values must never be
// logged or printed. Only presence ("set") or absence ("unset") is recorded.
var secretEnvKeys = map[string]bool{
	"QDRANT_API_KEY":        true,
	"LLM_API_KEY":           true,
	"OPENAI_API_KEY":        true,
	"AZURE_OPENAI_API_KEY":  true,
	"EMBEDDING_API_KEY":     true,
	"CONFLUENCE_TOKEN":      true,
	"JIRA_TOKEN":            true,
	"GIT_TOKEN":             true,
	"AWS_SECRET_ACCESS_KEY": true,
	"AWS_SESSION_TOKEN":     true,
}

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// secret indicates the value should be redacted to presence/absence.
	secret bool
}

// auditKeys is the ordered list of env vars included in every audit log entry.
var auditKeys = []auditEntry{
	{"QDRANT_URL", false},
	{"QDRANT_API_KEY", true},
	{"QDRANT_COLLECTION_NAME", false},
	{"LLM_PROVIDER", false},
	{"LLM_BASE_URL", false},
	{"LLM_API_KEY", true},
	{"EMBEDDING_MODEL", false},
	{"QDRANT_LOADER_CONFIG", false},
	{"QDRANT_LOADER_STATE_DB", false},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
	{"MCP_LOG_LEVEL", false},
	{"MCP_LOG_FILE", false},
}

// LogCommandStart emits a structured audit log entry when a CLI command begins.
// It records the command name, config file source, and sanitised environment.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}

	for _, entry := range auditKeys {
		val := os.Getenv(entry.key)
		if entry.secret {
			attrs = append(attrs, slog.String(entry.key, presence(val)))
		} else {
			attrs = append(attrs, slog.String(entry.key, valOrUnset(val)))
		}
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set" or "unset" for known secret keys, or the actual
// value for non-secret keys. This is safe to use in log messages.
func SanitiseKey(key, value string) string {
	if secretEnvKeys[key] {
		return presence(value)
	}
	return valOrUnset(value)
}

// RedactString returns "<redacted>" for a non-empty secret value, or
// "" when the value is empty. Used directly by the `config` command when
// rendering resolved configuration to stdout.
func RedactString(v string) string {
	if v == "" {
		return ""
	}
	return "<redacted>"
}

// secretSettingFragments lists source-adapter settings keys (Project.Sources
// entries, §6) whose values are credentials rather than configuration —
// confluence/jira's api_token today, matched case-insensitively against any
// future adapter settings key containing one of these fragments.
var secretSettingFragments = []string{"token", "password", "secret", "api_key"}

// RedactConfig returns a deep copy of cfg with every known secret value
// replaced by RedactString's output: the two global API keys, and any
// source settings entry whose key looks credential-shaped. Used by the
// `config` CLI command (§6), which must never print secrets even though it
// prints the fully resolved document.
func RedactConfig(cfg config.Config) config.Config {
	out := cfg
	out.Global.Qdrant.APIKey = RedactString(cfg.Global.Qdrant.APIKey)
	out.Global.LLM.APIKey = RedactString(cfg.Global.LLM.APIKey)

	out.Projects = make(map[string]config.Project, len(cfg.Projects))
	for projectID, project := range cfg.Projects {
		redactedProject := project
		redactedProject.Sources = make(map[string]config.Source, len(project.Sources))
		for kind, instances := range project.Sources {
			redactedInstances := make(config.Source, len(instances))
			for name, settings := range instances {
				redactedInstances[name] = redactSettings(settings)
			}
			redactedProject.Sources[kind] = redactedInstances
		}
		out.Projects[projectID] = redactedProject
	}
	return out
}

func redactSettings(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		if s, ok := v.(string); ok && looksLikeSecretKey(k) {
			out[k] = RedactString(s)
			continue
		}
		out[k] = v
	}
	return out
}

func looksLikeSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range secretSettingFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty, with the
// user's home directory redacted to "~" for privacy in logs.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
