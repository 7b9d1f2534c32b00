package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/ghostwriter/config"
	"github.com/ardnew/ghostwriter/log"
)

// These tests reconfigure the default logger and so do not run in parallel.

func TestLogScan(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     logConfig
		explicit []string
	}{
		{
			name:     "separate_value",
			args:     []string{"--log-level", "debug", "compile"},
			want:     logConfig{Level: "debug"},
			explicit: []string{"level"},
		},
		{
			name:     "assigned_value",
			args:     []string{"render", "--log-format=json", "x.tmpl"},
			want:     logConfig{Format: "json"},
			explicit: []string{"format"},
		},
		{
			name:     "negated_bool",
			args:     []string{"--no-log-pretty"},
			want:     logConfig{Pretty: false},
			explicit: []string{"pretty"},
		},
		{
			name:     "negated_false",
			args:     []string{"--no-log-caller=false"},
			want:     logConfig{Caller: true},
			explicit: []string{"caller"},
		},
		{
			name: "after_terminator",
			args: []string{"--", "--log-level", "debug"},
		},
		{
			name: "missing_value",
			args: []string{"--log-level", "-w"},
		},
		{
			name: "unknown_flag",
			args: []string{"--log-colour"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f logConfig

			f.scan(tt.args)

			var explicit []string
			for name := range f.explicit {
				explicit = append(explicit, name)
			}

			if diff := cmp.Diff(tt.explicit, explicit); diff != "" {
				t.Errorf("explicit flags mismatch (-want +got):\n%s", diff)
			}

			got := f
			got.explicit = nil

			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(logConfig{})); diff != "" {
				t.Errorf("scan() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLogOverride(t *testing.T) {
	project := config.Logging{Level: "error", Format: "text"}

	t.Run("project_applies", func(t *testing.T) {
		f := logConfig{Level: "info", Format: "text", TimeLayout: "RFC3339"}
		f.override(t.Context())(project)

		if got, want := log.Default().Level(), log.ParseLevel("error"); got != want {
			t.Errorf("level = %v, want %v", got, want)
		}
	})

	t.Run("explicit_flag_wins", func(t *testing.T) {
		var f logConfig

		f.scan([]string{"--log-level=debug"})
		f.override(t.Context())(project)

		if got, want := log.Default().Level(), log.ParseLevel("debug"); got != want {
			t.Errorf("level = %v, want %v", got, want)
		}
	})

	log.Config(log.WithLevel(log.ParseLevel("info")))
}
