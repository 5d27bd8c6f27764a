package cli

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestProgressLines(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"generate", "Generated 7 cells from TFRM-001.py"},
		{"export", "Exported .stepbook/TFRM-001.nb.py"},
		{"graph", "Rendered svg graph of TFRM-001.py"},
		{"run", "Ran TFRM-001.py"},
	}
	elapsed := regexp.MustCompile(`\(\d+(\.\d+)?(ns|µs|ms|s)\)`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newProgress(newLogger(&buf, log.InfoLevel)).done(tt.msg)

			line := strings.TrimSpace(buf.String())
			if !strings.Contains(line, tt.msg) {
				t.Errorf("line %q missing %q", line, tt.msg)
			}
			if !elapsed.MatchString(line) {
				t.Errorf("line %q has no elapsed time", line)
			}
			if strings.Count(buf.String(), "\n") != 1 {
				t.Errorf("want one line, got %q", buf.String())
			}
		})
	}
}

func TestVerboseLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		wantDbg bool
	}{
		{"default hides cell detail", log.InfoLevel, false},
		{"verbose shows cell detail", log.DebugLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			logger.Debug("renamed", "name", "df", "cell", 3)
			logger.Info("Generated 7 cells from TFRM-001.py")

			out := buf.String()
			if got := strings.Contains(out, "renamed"); got != tt.wantDbg {
				t.Errorf("debug line present = %v, want %v\n%s", got, tt.wantDbg, out)
			}
			if !strings.Contains(out, "Generated 7 cells") {
				t.Errorf("info line missing:\n%s", out)
			}
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)

	tests := []struct {
		name string
		ctx  context.Context
		want *log.Logger
	}{
		{"attached", withLogger(context.Background(), custom), custom},
		{"missing", context.Background(), log.Default()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loggerFromContext(tt.ctx); got != tt.want {
				t.Errorf("loggerFromContext() = %p, want %p", got, tt.want)
			}
		})
	}
}

func TestProgressFields(t *testing.T) {
	var buf bytes.Buffer
	newProgress(newLogger(&buf, log.InfoLevel)).done("Generated 7 cells from TFRM-001.py", "steps", 4)
	if !strings.Contains(buf.String(), "steps=4") {
		t.Errorf("line %q missing steps=4", buf.String())
	}
}
