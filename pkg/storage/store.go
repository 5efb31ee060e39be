package storage

import (
	"github.com/gantryci/gantry/pkg/types"
)

// Store persists pipeline runs for post-hoc diagnosis. Partial results of
// failed runs are kept alongside successful ones.
type Store interface {
	SaveRun(run *types.PipelineRun) error
	GetRun(id string) (*types.PipelineRun, error)
	ListRuns() ([]*types.PipelineRun, error)
	Close() error
}
