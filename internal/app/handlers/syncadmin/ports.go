package syncadmin

import (
	"context"

	"staysync/internal/app/dto"
	domainsync "staysync/internal/domain/sync"
)

// OutboxAdmin exposes the operator surface of the outbox store.
type OutboxAdmin interface {
	List(ctx context.Context, status string, limit int) ([]dto.OutboxEntry, error)
	Stats(ctx context.Context) (dto.OutboxStats, error)
	// RetryFailed re-queues every poison event as PENDING with the retry
	// counter reset. Explicit operator action only; never called by the
	// dispatcher itself.
	RetryFailed(ctx context.Context) (int64, error)
}

// ReconcileTrigger starts a reconciliation run on operator demand.
type ReconcileTrigger interface {
	RunProperty(ctx context.Context, organizationID, propertyID string) (domainsync.ReconciliationRun, error)
	RunAll(ctx context.Context, organizationID string) (domainsync.ReconciliationRun, error)
}
