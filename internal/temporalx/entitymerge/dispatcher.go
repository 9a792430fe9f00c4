package entitymerge

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/services"
	"github.com/openmesh-labs/identityhub/internal/temporalx"
)

// Dispatcher starts finalization workflows. The workflow id embeds the
// pair, so a second dispatch for the same pair while the first still runs
// is reported as already-started and treated as success.
type Dispatcher struct {
	tc  temporalsdkclient.Client
	log *logger.Logger
}

func NewDispatcher(tc temporalsdkclient.Client, baseLog *logger.Logger) *Dispatcher {
	return &Dispatcher{tc: tc, log: baseLog.With("component", "EntityMergeDispatcher")}
}

var _ services.FinalizerDispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) DispatchFinishMerge(ctx context.Context, req services.FinalizeRequest) error {
	return d.start(ctx, WorkflowFinishMerge, req)
}

func (d *Dispatcher) DispatchFinishUnmerge(ctx context.Context, req services.FinalizeRequest) error {
	return d.start(ctx, WorkflowFinishUnmerge, req)
}

func (d *Dispatcher) start(ctx context.Context, workflowName string, req services.FinalizeRequest) error {
	if d.tc == nil {
		return fmt.Errorf("temporal client not configured")
	}

	cfg := temporalx.LoadConfig()
	workflowID := fmt.Sprintf("%s/%s/%s", workflowName, req.PrimaryID, req.SecondaryID)

	_, err := d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             cfg.TaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflowName, req)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			d.log.Info("finalizer already running", "workflow_id", workflowID)
			return nil
		}
		return fmt.Errorf("start %s: %w", workflowName, err)
	}

	d.log.Info("finalizer dispatched", "workflow_id", workflowID)
	return nil
}
