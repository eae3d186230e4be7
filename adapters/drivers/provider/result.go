package providerdrv

import (
	"github.com/clustermaster/clustermaster/domain/model"
	"github.com/clustermaster/clustermaster/internal/execx"
)

// OpResultFrom converts a process result into an OpResult. okMsg is used as
// the message on success.
func OpResultFrom(res *execx.Result, okMsg string) *model.OpResult {
	out := &model.OpResult{
		Success: res.OK(),
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
	}
	if out.Success {
		out.Message = okMsg
	} else {
		out.Err = res.Err()
		out.Message = out.Err.Error()
	}
	return out
}

// Failed returns a failed OpResult wrapping err.
func Failed(err error) *model.OpResult {
	return &model.OpResult{Success: false, Message: err.Error(), Err: err}
}
