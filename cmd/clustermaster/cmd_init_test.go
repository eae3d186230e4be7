package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/clustermaster/clustermaster/config/cmenv"
)

func TestInitCommand(t *testing.T) {
	tests := []struct {
		name       string
		existing   string
		force      bool
		wantErrMsg string
	}{
		{name: "new_directory"},
		{name: "existing_config_no_force", existing: "version: 1\n", wantErrMsg: "already exists"},
		{name: "existing_config_with_force", existing: "version: 1\n", force: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, cmenv.DirName, cmenv.ConfigFileName)
			if tt.existing != "" {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, []byte(tt.existing), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			cmd := newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			args := []string{"--root", root, "init"}
			if tt.force {
				args = append(args, "--force")
			}
			cmd.SetArgs(args)
			err := cmd.ExecuteContext(context.Background())

			if tt.wantErrMsg != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErrMsg) {
					t.Fatalf("error = %v, want %q", err, tt.wantErrMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("init failed: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			var cfg cmenv.Config
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				t.Fatalf("config.yml is not valid YAML: %v", err)
			}
			if cfg.Version != 1 || cfg.Store.Type != "inmem" {
				t.Errorf("config = %+v", cfg)
			}
			if !strings.Contains(out.String(), "Created") {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "clustermaster version ") {
		t.Errorf("output = %q", out.String())
	}
}
