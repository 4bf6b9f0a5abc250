package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"config", ConfigError("bad ini").Build(), 7},
		{"scan", ScanError("unreadable").Build(), 9},
		{"parse", ParseError("bad header").Build(), 11},
		{"asset", AssetCopyError("missing").Build(), 11},
		{"internal", InternalError("boom").Build(), 10},
		{"unclassified", errors.New("unknown"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	err := ParseError("blog post requires a title").WithPath("blog/a.md").Build()

	quiet := NewCLIErrorAdapter(false, nil)
	if got := quiet.FormatError(err); got != "Error: blog post requires a title: blog/a.md" {
		t.Errorf("unexpected non-verbose format: %q", got)
	}

	verbose := NewCLIErrorAdapter(true, nil)
	if got := verbose.FormatError(err); got != err.Error() {
		t.Errorf("expected verbose format to match Error(), got %q", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ScanError("cannot read source").WithPath("source").Build())

	if code != 9 {
		t.Errorf("expected exit code 9, got %d", code)
	}
	if !bytes.Contains(out.Bytes(), []byte("cannot read source")) {
		t.Errorf("expected message on output, got %q", out.String())
	}
	if !bytes.Contains(logs.Bytes(), []byte("category=scan")) {
		t.Errorf("expected category in log output, got %q", logs.String())
	}
}
