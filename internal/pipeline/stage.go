package pipeline

import "context"

// Stage is one step of an ingestion run. Prepare checks preconditions
// and does cheap setup, Execute does the work, and Finalize commits or
// cleans up. All three phases of a stage run before the next stage
// starts.
type Stage interface {
	Name() string
	Prepare(ctx context.Context, pc *Context) error
	Execute(ctx context.Context, pc *Context) error
	Finalize(ctx context.Context, pc *Context) error
}

// baseStage provides no-op Prepare and Finalize for stages that only
// need Execute.
type baseStage struct{}

func (baseStage) Prepare(ctx context.Context, pc *Context) error  { return nil }
func (baseStage) Finalize(ctx context.Context, pc *Context) error { return nil }
