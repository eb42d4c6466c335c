package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "api_key is masked", key: "api_key", value: "abc", wantMask: true},
		{name: "Authorization is masked", key: "Authorization", value: "Bearer abc", wantMask: true},
		{name: "key containing token is masked", key: "provider_token", value: "abc", wantMask: true},
		{name: "openai_api_key is masked", key: "openai_api_key", value: "abc", wantMask: true},
		{name: "page index is kept", key: "page", value: "3", wantMask: false},
		{name: "field_key is kept", key: "field_key", value: "company_name", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test", tt.key, tt.value)

			out := buf.String()
			masked := strings.Contains(out, MaskValue)
			if masked != tt.wantMask {
				t.Errorf("masked = %v, want %v; output: %s", masked, tt.wantMask, out)
			}
		})
	}
}

func TestSecureHandler_SanitizesSensitivePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{name: "openai secret key", value: "sk-proj-abcdefghijklmnop1234", wantMask: true},
		{name: "bearer token", value: "Bearer abc.def", wantMask: true},
		{name: "jwt", value: "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig", wantMask: true},
		{name: "file path", value: "/tmp/out/images/p001.png", wantMask: false},
		{name: "short sk prefix", value: "sk-1", wantMask: false},
		{name: "japanese text", value: "為替リスク", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test", "value", tt.value)

			masked := strings.Contains(buf.String(), MaskValue)
			if masked != tt.wantMask {
				t.Errorf("masked = %v, want %v; output: %s", masked, tt.wantMask, buf.String())
			}
		})
	}
}

func TestSecureHandler_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verbose   bool
		logFunc   func(*slog.Logger)
		wantEmpty bool
	}{
		{name: "debug hidden without verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Debug("d") }, wantEmpty: true},
		{name: "info hidden without verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Info("i") }, wantEmpty: true},
		{name: "warn shown without verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Warn("w") }, wantEmpty: false},
		{name: "debug shown with verbose", verbose: true, logFunc: func(l *slog.Logger) { l.Debug("d") }, wantEmpty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.logFunc(NewSecureLogger(&buf, tt.verbose))
			if (buf.Len() == 0) != tt.wantEmpty {
				t.Errorf("empty = %v, want %v", buf.Len() == 0, tt.wantEmpty)
			}
		})
	}
}

func TestSecureHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).
		With("api_key", "sk-abcdefghijklmnopqrstu").
		WithGroup("provider")
	logger.Info("request", "token", "abc", "model", "gpt-4o")

	out := buf.String()
	if strings.Contains(out, "sk-abcdefghijklmnopqrstu") || strings.Contains(out, "token=abc") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "gpt-4o") {
		t.Errorf("expected model to be logged: %s", out)
	}
}

func TestSecureHandler_NestedGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)
	logger.Info("request", slog.Group("headers", slog.String("authorization", "Bearer x")))

	if !strings.Contains(buf.String(), MaskValue) {
		t.Errorf("expected masked group attribute: %s", buf.String())
	}
}

func TestNewSecureJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, true)
	logger.Info("test", "api_key", "secret", "pages", 3)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if got["api_key"] != MaskValue {
		t.Errorf("api_key = %v, want %q", got["api_key"], MaskValue)
	}
	if got["pages"] != float64(3) {
		t.Errorf("pages = %v, want 3", got["pages"])
	}
}

func TestNewSecureHandlerNil(t *testing.T) {
	t.Parallel()

	if NewSecureHandler(nil) == nil {
		t.Fatal("expected handler")
	}
}
