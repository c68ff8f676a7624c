package pipeline

import "context"

// StageName is a strongly-typed identifier for a pipeline stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageLoadModel        StageName = "load_model"
	StageBuildGraph       StageName = "build_graph"
	StageCreateProcessors StageName = "create_processors"
	StageResolve          StageName = "resolve"
	StageCollectLabels    StageName = "collect_labels"
	StagePersistLabels    StageName = "persist_labels"
	StageGenerateSite     StageName = "generate_site"
)

// Stage runs one step of a generation against the shared state.
type Stage func(ctx context.Context, st *State) error

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

func defaultStages() []StageDef {
	return []StageDef{
		{StageLoadModel, stageLoadModel},
		{StageBuildGraph, stageBuildGraph},
		{StageCreateProcessors, stageCreateProcessors},
		{StageResolve, stageResolve},
		{StageCollectLabels, stageCollectLabels},
		{StagePersistLabels, stagePersistLabels},
		{StageGenerateSite, stageGenerateSite},
	}
}
