package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/galnetfeed/galnet-archive/app/ingest"
	"github.com/galnetfeed/galnet-archive/app/search"
)

type UpdateArchiveTask struct {
	Task
	pipeline *ingest.Pipeline
	engine   *search.Engine
}

func NewUpdateArchiveTask(pipeline *ingest.Pipeline, engine *search.Engine) *UpdateArchiveTask {
	return &UpdateArchiveTask{
		Task:     NewTask(TaskTypeUpdateArchive),
		pipeline: pipeline,
		engine:   engine,
	}
}

func (t *UpdateArchiveTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.pipeline.Update(ctx)
	if err != nil {
		return fmt.Errorf("failed to update archive: %w", err)
	}

	if result == nil {
		slog.Debug("Task completed", "type", "UpdateArchive", "duration", t.GetDuration(), "new", 0)
		return nil
	}

	// New rows change search results, so cached queries are stale.
	t.engine.FlushCache()

	slog.Info("Task completed",
		"type", "UpdateArchive",
		"duration", t.GetDuration(),
		"new", result.Count,
		"failed", len(result.Failures))

	return nil
}
