package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/galnetfeed/galnet-archive/app/repair"
	"github.com/galnetfeed/galnet-archive/app/search"
)

type RepairCorpusTask struct {
	Task
	repairer *repair.Repairer
	engine   *search.Engine
}

func NewRepairCorpusTask(repairer *repair.Repairer, engine *search.Engine) *RepairCorpusTask {
	return &RepairCorpusTask{
		Task:     NewTask(TaskTypeRepairCorpus),
		repairer: repairer,
		engine:   engine,
	}
}

func (t *RepairCorpusTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.repairer.Run()
	if err != nil {
		return fmt.Errorf("failed to repair corpus: %w", err)
	}

	t.engine.FlushCache()

	slog.Info("Task completed",
		"type", "RepairCorpus",
		"duration", t.GetDuration(),
		"removed", report.Removed,
		"total", report.Total)

	return nil
}
