package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/ghostwriter/config"
	"github.com/ardnew/ghostwriter/snippet"
)

func TestInitRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		init    Init
		setup   func(t *testing.T, dir string)
		wantErr error
	}{
		{
			name: "create_new_config",
		},
		{
			name: "custom_tags",
			init: Init{Open: "{{gw", Close: "gw}}", Processes: 2},
		},
		{
			name: "overwrite_existing_with_force",
			init: Init{Force: true},
			setup: func(t *testing.T, dir string) {
				t.Helper()

				path := filepath.Join(dir, config.FileName)
				if err := os.WriteFile(path, []byte("existing content"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "fail_without_force",
			setup: func(t *testing.T, dir string) {
				t.Helper()

				path := filepath.Join(dir, config.FileName)
				if err := os.WriteFile(path, []byte("existing content"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			wantErr: ErrFileExists,
		},
		{
			name:    "same_tags",
			init:    Init{Open: "##", Close: "##"},
			wantErr: snippet.ErrTags,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := filepath.Join(t.TempDir(), "project")
			if tt.setup != nil {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					t.Fatal(err)
				}

				tt.setup(t, dir)
			}

			in := tt.init
			in.Dir = dir

			err := in.Run(t.Context())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
				}

				if !errors.Is(err, ErrWriteConfig) {
					t.Errorf("Run() error = %v, want %v", err, ErrWriteConfig)
				}

				return
			}

			if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}

			path := filepath.Join(dir, config.FileName)

			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("config.Load() failed: %v", err)
			}

			if err := cfg.Validate(dir); err != nil {
				t.Fatalf("Validate() failed: %v", err)
			}

			want := config.DefaultInit()
			if tt.init.Open != "" {
				want.Open, want.Close = tt.init.Open, tt.init.Close
			}

			if tt.init.Processes > 0 {
				want.Processes = tt.init.Processes
			}

			got := cfg.Tags()
			if diff := cmp.Diff(want.Tags(), got); diff != "" {
				t.Errorf("tags mismatch (-want +got):\n%s", diff)
			}

			if cfg.Parser.Processes != want.Processes {
				t.Errorf("processes = %d, want %d", cfg.Parser.Processes, want.Processes)
			}

			example := filepath.Join(dir, want.SearchPaths[0], exampleModuleFile)

			src, err := os.ReadFile(example)
			if err != nil {
				t.Fatalf("example module not written: %v", err)
			}

			if string(src) != ExampleModule {
				t.Errorf("example module content mismatch")
			}
		})
	}
}

func TestInitKeepsSearchPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	search := filepath.Join(dir, config.DefaultInit().SearchPaths[0])

	if err := os.MkdirAll(search, 0o755); err != nil {
		t.Fatal(err)
	}

	in := Init{Dir: dir}
	if err := in.Run(t.Context()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(search, exampleModuleFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("example written into existing search path: %v", err)
	}
}
