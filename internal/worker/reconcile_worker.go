package worker

import (
	"context"
	"log"

	"github.com/hibiken/asynq"
	"github.com/musichub/api/internal/service"
)

// TaskTypeReconcile is the periodic sweep that re-drives every non-terminal
// split job through reconciliation, closing out records whose clients
// stopped polling.
const TaskTypeReconcile = "splitter:reconcile"

// NewReconcileTask builds the sweep task for the scheduler.
func NewReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReconcile, nil)
}

// ReconcileWorker processes reconcile sweep tasks
type ReconcileWorker struct {
	splits *service.SplitService
}

func NewReconcileWorker(splits *service.SplitService) *ReconcileWorker {
	return &ReconcileWorker{splits: splits}
}

// ProcessTask handles one sweep run
func (w *ReconcileWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting split job reconcile sweep")
	return w.splits.ReconcileAll(ctx)
}
