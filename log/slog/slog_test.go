package slog

import (
	"bytes"
	"errors"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/redscript"
)

func TestLoggerWritesLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))}

	l.Error("script prime failed", redscript.Fields{"err": errors.New("refused")})

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "err=refused") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestEmptyFields(t *testing.T) {
	if attrs(nil) != nil {
		t.Fatal("want nil attrs for empty fields")
	}
}
