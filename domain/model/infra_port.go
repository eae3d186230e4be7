package model

import "context"

// InfraStep is one stage of an infrastructure run.
type InfraStep string

const (
	InfraInit    InfraStep = "init"
	InfraPlan    InfraStep = "plan"
	InfraApply   InfraStep = "apply"
	InfraDestroy InfraStep = "destroy"
)

// InfraPort provisions cloud clusters from rendered configuration.
type InfraPort interface {
	// Prepare renders the configuration of run id and returns its directory.
	Prepare(ctx context.Context, id string, provider DeploymentProvider, vars map[string]any) (string, error)
	// Run executes step in dir and returns the combined output. A failed
	// step returns the output together with an error.
	Run(ctx context.Context, dir string, step InfraStep) (string, error)
	// Dir returns the directory of run id and whether it exists.
	Dir(id string) (string, bool)
	// Remove deletes the directory of run id.
	Remove(id string) error
}
