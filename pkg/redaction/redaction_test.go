package redaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactor_Redact(t *testing.T) {
	r := NewRedactor(DefaultConfig())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bearer header",
			input: "Authorization: Bearer s3cr3t-token",
			want:  "Authorization: Bearer [REDACTED]",
		},
		{
			name:  "query parameter",
			input: "GET /ws?access_token=abc123&x=1",
			want:  "GET /ws?access_token=[REDACTED]&x=1",
		},
		{
			name:  "json field",
			input: `{"access_token":"abc","host":"127.0.0.1"}`,
			want:  `{"access_token":"[REDACTED]","host":"127.0.0.1"}`,
		},
		{
			name:  "qq numbers survive",
			input: "group 123456789 user 10001",
			want:  "group 123456789 user 10001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Redact(tt.input))
		})
	}
}

func TestRedactor_Secrets(t *testing.T) {
	r := NewRedactor(Config{Enabled: true})
	r.AddSecret("hunter2")

	assert.Equal(t, "token is [REDACTED]", r.Redact("token is hunter2"))
}

func TestRedactor_Disabled(t *testing.T) {
	r := NewRedactor(Config{Enabled: false, Secrets: []string{"x"}})
	assert.Equal(t, "Bearer x", r.Redact("Bearer x"))
}

func TestRedactor_RedactFields(t *testing.T) {
	r := NewRedactor(DefaultConfig())

	out := r.RedactFields(map[string]any{
		"access_token": "abc",
		"url":          "ws://h/?access_token=abc",
		"self_id":      int64(42),
	})

	assert.Equal(t, "[REDACTED]", out["access_token"])
	assert.Equal(t, "ws://h/?access_token=[REDACTED]", out["url"])
	assert.Equal(t, int64(42), out["self_id"])
}
