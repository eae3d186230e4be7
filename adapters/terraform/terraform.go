// Package terraform renders cluster configurations from templates and drives
// the terraform binary through execx.
package terraform

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
	"github.com/clustermaster/clustermaster/internal/logging"
)

// StepTimeout bounds every terraform invocation.
const StepTimeout = 1800 * time.Second

const (
	mainFile      = "main.tf"
	providersFile = "providers.tf"
)

//go:embed templates/*
var builtin embed.FS

// Runner implements model.InfraPort.
type Runner struct {
	// Bin is the terraform executable. Defaults to "terraform".
	Bin string
	// TemplatesDir holds {provider}_cluster.tf.tmpl and providers.tf. Files
	// missing there are taken from the built-in templates.
	TemplatesDir string
	// InfraDir holds one working directory per run.
	InfraDir string
	Exec     execx.Runner
	// Timeout overrides StepTimeout.
	Timeout time.Duration
}

func New(exec execx.Runner, bin, templatesDir, infraDir string) *Runner {
	return &Runner{Bin: bin, TemplatesDir: templatesDir, InfraDir: infraDir, Exec: exec}
}

var _ model.InfraPort = (*Runner)(nil)

func (r *Runner) bin() string {
	if r.Bin == "" {
		return "terraform"
	}
	return r.Bin
}

// readTemplate looks name up in TemplatesDir, then in the built-in set.
func (r *Runner) readTemplate(name string) ([]byte, error) {
	if r.TemplatesDir != "" {
		b, err := os.ReadFile(filepath.Join(r.TemplatesDir, name))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return builtin.ReadFile("templates/" + name)
}

// Render executes the provider template with vars.
func (r *Runner) Render(provider model.DeploymentProvider, vars map[string]any) ([]byte, error) {
	name := string(provider) + "_cluster.tf.tmpl"
	src, err := r.readTemplate(name)
	if err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", model.ErrDeploymentInvalid, name, err)
	}
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (r *Runner) Prepare(ctx context.Context, id string, provider model.DeploymentProvider, vars map[string]any) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: run id %q", model.ErrDeploymentInvalid, id)
	}
	out, err := r.Render(provider, vars)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(r.InfraDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, mainFile), out, 0o644); err != nil {
		return "", err
	}
	if p, err := r.readTemplate(providersFile); err == nil {
		if err := os.WriteFile(filepath.Join(dir, providersFile), p, 0o644); err != nil {
			return "", err
		}
	}
	logging.FromContext(ctx).Debug(ctx, "terraform config rendered", "dir", dir, "provider", provider)
	return dir, nil
}

func args(step model.InfraStep) ([]string, error) {
	switch step {
	case model.InfraInit:
		return []string{"init", "-input=false", "-no-color"}, nil
	case model.InfraPlan:
		return []string{"plan", "-input=false", "-no-color", "-out=tfplan"}, nil
	case model.InfraApply:
		return []string{"apply", "-input=false", "-no-color", "-auto-approve", "tfplan"}, nil
	case model.InfraDestroy:
		return []string{"destroy", "-input=false", "-no-color", "-auto-approve"}, nil
	}
	return nil, fmt.Errorf("unknown terraform step %q", step)
}

func (r *Runner) Run(ctx context.Context, dir string, step model.InfraStep) (string, error) {
	a, err := args(step)
	if err != nil {
		return "", err
	}
	timeout := r.Timeout
	if timeout == 0 {
		timeout = StepTimeout
	}
	res := r.Exec.Run(ctx, execx.Cmd{Name: r.bin(), Args: a, Dir: dir, Timeout: timeout})
	output := strings.TrimSpace(strings.TrimSpace(res.Stderr) + "\n" + strings.TrimSpace(res.Stdout))
	if err := res.Err(); err != nil {
		return output, fmt.Errorf("terraform %s: %w", step, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *Runner) Dir(id string) (string, bool) {
	dir := filepath.Join(r.InfraDir, id)
	st, err := os.Stat(dir)
	return dir, err == nil && st.IsDir()
}

func (r *Runner) Remove(id string) error {
	if id == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(r.InfraDir, id))
}
