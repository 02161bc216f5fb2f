// Package redaction masks gateway credentials before they reach a log sink.
// It knows the shapes an access token takes on the wire (bearer headers,
// access_token query parameters, JSON fields) plus any literal secret the
// process was configured with.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	Enabled bool `json:"enabled"`

	// Secrets are literal values (typically the configured access token)
	// that are masked wherever they appear.
	Secrets []string `json:"-"`

	// Replacement is the string used to replace sensitive data.
	Replacement string `json:"replacement"`
}

// DefaultConfig returns the default redaction configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Replacement: "[REDACTED]",
	}
}

var (
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)([^\s"',}]+)`)
	queryPattern  = regexp.MustCompile(`(?i)([?&]access_token=)([^&\s"']+)`)
	jsonPattern   = regexp.MustCompile(`(?i)("(?:access_token|token|authorization)"\s*:\s*")([^"]*)(")`)

	sensitiveKeys = []string{"token", "authorization", "secret", "password", "cookie", "csrf"}
)

// Redactor applies a Config to strings and log fields.
type Redactor struct {
	config Config
	mu     sync.RWMutex
}

// NewRedactor creates a new Redactor with the given configuration.
func NewRedactor(config Config) *Redactor {
	if config.Replacement == "" {
		config.Replacement = "[REDACTED]"
	}
	return &Redactor{config: config}
}

// Redact masks every credential found in input.
func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.config.Enabled || input == "" {
		return input
	}

	repl := r.config.Replacement
	out := bearerPattern.ReplaceAllString(input, "${1}"+repl)
	out = queryPattern.ReplaceAllString(out, "${1}"+repl)
	out = jsonPattern.ReplaceAllString(out, "${1}"+repl+"${3}")

	for _, s := range r.config.Secrets {
		if s != "" {
			out = strings.ReplaceAll(out, s, repl)
		}
	}
	return out
}

// RedactFields returns a copy of fields with sensitive keys masked and
// string values passed through Redact.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	r.mu.RLock()
	enabled, repl := r.config.Enabled, r.config.Replacement
	r.mu.RUnlock()

	if !enabled || fields == nil {
		return fields
	}

	result := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			result[k] = repl
			continue
		}
		if s, ok := v.(string); ok {
			result[k] = r.Redact(s)
			continue
		}
		result[k] = v
	}
	return result
}

// AddSecret registers an extra literal secret.
func (r *Redactor) AddSecret(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Secrets = append(r.config.Secrets, secret)
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

// SetGlobalConfig replaces the process-wide redactor.
func SetGlobalConfig(config Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRedactor = NewRedactor(config)
}

// AddGlobalSecret registers a literal secret with the process-wide redactor.
func AddGlobalSecret(secret string) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	globalRedactor.AddSecret(secret)
}

// Redact applies the process-wide redactor.
func Redact(input string) string {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.Redact(input)
}

// RedactFields applies the process-wide redactor to log fields.
func RedactFields(fields map[string]any) map[string]any {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor.RedactFields(fields)
}
