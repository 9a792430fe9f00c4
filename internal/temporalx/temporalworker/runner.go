package temporalworker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	entityrepo "github.com/openmesh-labs/identityhub/internal/data/repos/entity"
	mergerepo "github.com/openmesh-labs/identityhub/internal/data/repos/merge"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/services"
	"github.com/openmesh-labs/identityhub/internal/temporalx"
	"github.com/openmesh-labs/identityhub/internal/temporalx/entitymerge"
	"github.com/openmesh-labs/identityhub/internal/utils"
)

// Runner hosts the finalization worker: it registers the merge and unmerge
// workflows plus their activities and polls the configured task queue.
type Runner struct {
	log *logger.Logger
	tc  temporalsdkclient.Client

	entities   entityrepo.EntityRepo
	activities entityrepo.ActivityRepo
	actions    mergerepo.MergeActionRepo
	search     services.SearchSyncService
	notifier   services.Notifier
}

func NewRunner(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	entities entityrepo.EntityRepo,
	activities entityrepo.ActivityRepo,
	actions mergerepo.MergeActionRepo,
	search services.SearchSyncService,
	notifier services.Notifier,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if entities == nil || activities == nil || actions == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:        log,
		tc:         tc,
		entities:   entities,
		activities: activities,
		actions:    actions,
		search:     search,
		notifier:   notifier,
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	cfg := temporalx.LoadConfig()
	r.log.Info("starting finalization worker", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	deadline := time.Now().Add(time.Duration(utils.GetEnvAsInt("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60, r.log)) * time.Second)

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w := r.newWorker(cfg)
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("finalization worker started", "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		if time.Now().After(deadline) {
			return startErr
		}
		r.log.Warn("worker failed to start, retrying", "attempt", attempt, "error", startErr)
		time.Sleep(time.Duration(attempt) * 250 * time.Millisecond)
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) worker.Worker {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, r.log)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &entitymerge.Activities{
		Log:        r.log,
		Entities:   r.entities,
		Activities: r.activities,
		Actions:    r.actions,
		Search:     r.search,
		Notify:     r.notifier,
	}

	w.RegisterWorkflowWithOptions(entitymerge.FinishMergeWorkflow, workflow.RegisterOptions{Name: entitymerge.WorkflowFinishMerge})
	w.RegisterWorkflowWithOptions(entitymerge.FinishUnmergeWorkflow, workflow.RegisterOptions{Name: entitymerge.WorkflowFinishUnmerge})
	w.RegisterActivityWithOptions(acts.SweepResiduals, activity.RegisterOptions{Name: entitymerge.ActivitySweepResiduals})
	w.RegisterActivityWithOptions(acts.RetireSecondary, activity.RegisterOptions{Name: entitymerge.ActivityRetireSecondary})
	w.RegisterActivityWithOptions(acts.MarkDone, activity.RegisterOptions{Name: entitymerge.ActivityMarkDone})
	w.RegisterActivityWithOptions(acts.MarkError, activity.RegisterOptions{Name: entitymerge.ActivityMarkError})
	w.RegisterActivityWithOptions(acts.SearchSync, activity.RegisterOptions{Name: entitymerge.ActivitySearchSync})
	w.RegisterActivityWithOptions(acts.NotifyDone, activity.RegisterOptions{Name: entitymerge.ActivityNotify})
	return w
}
