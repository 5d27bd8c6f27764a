package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/stepbook/pkg/interp"
	"github.com/matzehuels/stepbook/pkg/pipeline"
)

// syncBuffer lets the spinner goroutine and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerStages(t *testing.T) {
	var out syncBuffer
	s := newSpinner(context.Background(), &out, "Reading TFRM-001.nb.py")
	s.start()
	time.Sleep(3 * spinnerInterval)
	s.stage("Running 5 cells")
	time.Sleep(3 * spinnerInterval)
	s.stop()

	got := out.String()
	for _, want := range []string{"Reading TFRM-001.nb.py", "Running 5 cells"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
	if s.cancelled() {
		t.Error("cancelled() = true after a plain stop")
	}
}

func TestSpinnerStop(t *testing.T) {
	tests := []struct {
		name  string
		start bool
	}{
		{"before start", false},
		{"after start", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out syncBuffer
			s := newSpinner(context.Background(), &out, "Generating")
			if tt.start {
				s.start()
				s.start()
			}
			s.stop()
			s.stop()
			if !tt.start && out.String() != "" {
				t.Errorf("unstarted spinner wrote %q", out.String())
			}
		})
	}
}

func TestSpinnerCancelled(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"cancel", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx, cancel
		}},
		{"timeout", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), spinnerInterval/2)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()
			var out syncBuffer
			s := newSpinner(ctx, &out, "Running transform")
			s.start()
			<-ctx.Done()
			s.stop()
			if !s.cancelled() {
				t.Error("cancelled() = false after the context ended")
			}
		})
	}
}

func TestExecuteStages(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "notebook",
			input: pipeline.InputNotebook,
			want:  []string{"Parsing notebook"},
		},
		{
			name:  "script",
			input: pipeline.InputScript,
			want:  []string{"Running transform"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stages []string
			opts := interp.Options{Entry: "transform"}
			_, _ = execute(context.Background(), "", tt.input, opts, func(m string) {
				stages = append(stages, m)
			})
			if len(stages) < len(tt.want) {
				t.Fatalf("stages = %q, want prefix %q", stages, tt.want)
			}
			for i, w := range tt.want {
				if stages[i] != w {
					t.Errorf("stage %d = %q, want %q", i, stages[i], w)
				}
			}
		})
	}
}
