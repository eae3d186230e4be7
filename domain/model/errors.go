package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrClusterNotFound    = errors.New("cluster not found")
	ErrClusterInvalid     = errors.New("cluster invalid")
	ErrAlreadyExists      = errors.New("already exists")
	ErrProviderInvalid    = errors.New("provider invalid")
	ErrProviderAmbiguous  = errors.New("cluster does not belong to any known provider")
	ErrToolUnavailable    = errors.New("required tool unavailable")
	ErrTimeout            = errors.New("operation timed out")
	ErrPartialFailure     = errors.New("partial failure")
	ErrResourceExhausted  = errors.New("no free port slot in range")
	ErrReleaseNotFound    = errors.New("release not found")
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrDeploymentInvalid  = errors.New("deployment invalid")
	ErrActivityNotFound   = errors.New("activity not found")
	ErrBackupNotFound     = errors.New("backup not found")
	ErrBackupInvalid      = errors.New("backup invalid")
)

// CommandError describes an external command that failed. It unwraps to
// ErrTimeout or ErrToolUnavailable when applicable.
type CommandError struct {
	Cmd      string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s: exit code %d", e.Cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit code %d: %s", e.Cmd, e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error { return e.Cause }
