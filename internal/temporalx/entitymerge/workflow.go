package entitymerge

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/openmesh-labs/identityhub/internal/realtime"
	"github.com/openmesh-labs/identityhub/internal/services"
)

// FinishMergeWorkflow runs the asynchronous tail of a merge: residual
// relinks that raced the synchronous phase, retirement of the secondary
// shell, the terminal ledger state, search index fan-out and the realtime
// notification. Every activity is idempotent, so retries and duplicate
// workflow starts converge on the same end state.
func FinishMergeWorkflow(ctx workflow.Context, in services.FinalizeRequest) error {
	ctx = withDefaults(ctx)

	err := func() error {
		if err := workflow.ExecuteActivity(ctx, ActivitySweepResiduals, in).Get(ctx, nil); err != nil {
			return err
		}
		if err := workflow.ExecuteActivity(ctx, ActivityRetireSecondary, in).Get(ctx, nil); err != nil {
			return err
		}
		if err := workflow.ExecuteActivity(ctx, ActivityMarkDone, in).Get(ctx, nil); err != nil {
			return err
		}
		if err := workflow.ExecuteActivity(ctx, ActivitySearchSync, in, true).Get(ctx, nil); err != nil {
			return err
		}
		return workflow.ExecuteActivity(ctx, ActivityNotify, in, realtime.EventEntityMerged).Get(ctx, nil)
	}()
	if err != nil {
		markError(ctx, in, err)
		return err
	}
	return nil
}

// FinishUnmergeWorkflow is the asynchronous tail of an unmerge. The split
// entity already exists; only the index, ledger and notification remain.
func FinishUnmergeWorkflow(ctx workflow.Context, in services.FinalizeRequest) error {
	ctx = withDefaults(ctx)

	err := func() error {
		if err := workflow.ExecuteActivity(ctx, ActivityMarkDone, in).Get(ctx, nil); err != nil {
			return err
		}
		if err := workflow.ExecuteActivity(ctx, ActivitySearchSync, in, false).Get(ctx, nil); err != nil {
			return err
		}
		return workflow.ExecuteActivity(ctx, ActivityNotify, in, realtime.EventEntityUnmerged).Get(ctx, nil)
	}()
	if err != nil {
		markError(ctx, in, err)
		return err
	}
	return nil
}

func withDefaults(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 10,
		},
	})
}

// markError records the failure on the ledger row so operators can see a
// stuck pair without digging through workflow histories. Best-effort; the
// workflow error is what gets surfaced either way.
func markError(ctx workflow.Context, in services.FinalizeRequest, cause error) {
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	_ = workflow.ExecuteActivity(dctx, ActivityMarkError, in, cause.Error()).Get(dctx, nil)
}
