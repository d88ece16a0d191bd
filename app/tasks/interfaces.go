package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background task processing and by
// the API server to trigger maintenance runs on demand.
// Example usage:
//
//	scheduler := NewScheduler(pipeline, repairer, engine)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewUpdateArchiveTask(pipeline, engine))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueUpdate() error
	EnqueueRepair() error
}
