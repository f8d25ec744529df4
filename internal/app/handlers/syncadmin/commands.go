package syncadmin

import (
	"context"
	"errors"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
)

const (
	bulkRetryKey             = "syncadmin.outbox.retry_failed"
	triggerReconciliationKey = "syncadmin.reconcile.trigger"
)

var ErrReconcilerUnavailable = errors.New("syncadmin: reconciler unavailable")

// BulkRetryOutboxCommand re-queues every poison outbox event.
type BulkRetryOutboxCommand struct{}

func (c BulkRetryOutboxCommand) Key() string { return bulkRetryKey }

type BulkRetryOutboxHandler struct {
	Outbox OutboxAdmin
}

func (h *BulkRetryOutboxHandler) Handle(ctx context.Context, _ BulkRetryOutboxCommand) (dto.BulkRetryResult, error) {
	n, err := h.Outbox.RetryFailed(ctx)
	if err != nil {
		return dto.BulkRetryResult{}, err
	}
	return dto.BulkRetryResult{Requeued: n}, nil
}

// TriggerReconciliationCommand starts a manual reconciliation run. An empty
// PropertyID reconciles every sync-enabled mapping in the organization.
type TriggerReconciliationCommand struct {
	OrganizationID string
	PropertyID     string
}

func (c TriggerReconciliationCommand) Key() string { return triggerReconciliationKey }

type TriggerReconciliationHandler struct {
	Reconciler ReconcileTrigger
}

func (h *TriggerReconciliationHandler) Handle(ctx context.Context, cmd TriggerReconciliationCommand) (dto.RunView, error) {
	if h.Reconciler == nil {
		return dto.RunView{}, ErrReconcilerUnavailable
	}
	if cmd.PropertyID != "" {
		run, err := h.Reconciler.RunProperty(ctx, cmd.OrganizationID, cmd.PropertyID)
		if err != nil {
			return dto.RunView{}, err
		}
		return dto.MapRun(run), nil
	}
	run, err := h.Reconciler.RunAll(ctx, cmd.OrganizationID)
	if err != nil {
		return dto.RunView{}, err
	}
	return dto.MapRun(run), nil
}

var (
	_ commands.Handler[BulkRetryOutboxCommand, dto.BulkRetryResult] = (*BulkRetryOutboxHandler)(nil)
	_ commands.Handler[TriggerReconciliationCommand, dto.RunView]   = (*TriggerReconciliationHandler)(nil)
)
