package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionGetters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func() string
	}{
		{name: "version", fn: getVersion},
		{name: "commit", fn: getCommit},
		{name: "date", fn: getDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.fn() == "" {
				t.Errorf("%s is empty", tt.name)
			}
		})
	}

	if _, ok := buildSetting("no.such.setting"); ok {
		t.Error("buildSetting found an unknown key")
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints version info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"irreview version", "commit:", "built:", "go:"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("output missing %q: %q", want, buf.String())
			}
		}
	})

	t.Run("rejects arguments", func(t *testing.T) {
		t.Parallel()

		cmd := NewVersionCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"extra"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for extra argument")
		}
	})
}
