package syncadmin

import (
	"context"
	"time"

	"staysync/internal/app/dto"
	"staysync/internal/app/queries"
	"staysync/internal/app/uow"
)

const (
	listOutboxKey       = "syncadmin.outbox.list"
	outboxStatsKey      = "syncadmin.outbox.stats"
	listConflictsKey    = "syncadmin.conflicts.list"
	listMappingsKey     = "syncadmin.mappings.list"
	getMappingKey       = "syncadmin.mappings.get"
	listRunsKey         = "syncadmin.runs.list"
	runStatsKey         = "syncadmin.runs.stats"
	connectionHealthKey = "syncadmin.connections"
	diagnosticsKey      = "syncadmin.diagnostics"
)

const defaultListLimit = 100

type ListOutboxQuery struct {
	Status string // empty = any
	Limit  int
}

func (q ListOutboxQuery) Key() string { return listOutboxKey }

type ListOutboxHandler struct {
	Outbox OutboxAdmin
}

func (h *ListOutboxHandler) Handle(ctx context.Context, q ListOutboxQuery) ([]dto.OutboxEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return h.Outbox.List(ctx, q.Status, limit)
}

type OutboxStatsQuery struct{}

func (q OutboxStatsQuery) Key() string { return outboxStatsKey }

type OutboxStatsHandler struct {
	Outbox OutboxAdmin
}

func (h *OutboxStatsHandler) Handle(ctx context.Context, _ OutboxStatsQuery) (dto.OutboxStats, error) {
	return h.Outbox.Stats(ctx)
}

type ListConflictsQuery struct {
	OrganizationID string
	OnlyOpen       bool
	Limit          int
}

func (q ListConflictsQuery) Key() string { return listConflictsKey }

type ListConflictsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListConflictsHandler) Handle(ctx context.Context, q ListConflictsQuery) ([]dto.ConflictView, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	conflicts, err := unit.Conflicts().List(ctx, q.OrganizationID, q.OnlyOpen, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ConflictView, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, dto.MapConflict(c))
	}
	return out, nil
}

type ListMappingsQuery struct {
	OrganizationID string
}

func (q ListMappingsQuery) Key() string { return listMappingsKey }

type ListMappingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListMappingsHandler) Handle(ctx context.Context, q ListMappingsQuery) ([]dto.MappingView, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	mappings, err := unit.Mappings().List(ctx, q.OrganizationID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MappingView, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, dto.MapMapping(m))
	}
	return out, nil
}

type GetMappingQuery struct {
	MappingID string
}

func (q GetMappingQuery) Key() string { return getMappingKey }

type GetMappingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetMappingHandler) Handle(ctx context.Context, q GetMappingQuery) (dto.MappingView, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.MappingView{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	m, err := unit.Mappings().ByID(ctx, q.MappingID)
	if err != nil {
		return dto.MappingView{}, err
	}
	return dto.MapMapping(m), nil
}

type ListRunsQuery struct {
	OrganizationID string
	Limit          int
}

func (q ListRunsQuery) Key() string { return listRunsKey }

type ListRunsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListRunsHandler) Handle(ctx context.Context, q ListRunsQuery) ([]dto.RunView, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	runs, err := unit.Runs().List(ctx, q.OrganizationID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RunView, 0, len(runs))
	for _, r := range runs {
		out = append(out, dto.MapRun(r))
	}
	return out, nil
}

type RunStatsQuery struct {
	OrganizationID string
}

func (q RunStatsQuery) Key() string { return runStatsKey }

type RunStatsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *RunStatsHandler) Handle(ctx context.Context, q RunStatsQuery) (dto.RunStatsView, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.RunStatsView{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	stats, err := unit.Runs().Stats(ctx, q.OrganizationID)
	if err != nil {
		return dto.RunStatsView{}, err
	}
	return dto.RunStatsView{
		Total:     stats.Total,
		Completed: stats.Completed,
		Failed:    stats.Failed,
		LastRunAt: stats.LastRunAt,
	}, nil
}

type ConnectionHealthQuery struct {
	OrganizationID string
}

func (q ConnectionHealthQuery) Key() string { return connectionHealthKey }

type ConnectionHealthHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle aggregates mapping counts and open conflicts per channel into one
// operator-facing health row per connected channel.
func (h *ConnectionHealthHandler) Handle(ctx context.Context, q ConnectionHealthQuery) ([]dto.ConnectionHealth, error) {
	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return connectionHealth(ctx, unit, q.OrganizationID)
}

func connectionHealth(ctx context.Context, unit uow.UnitOfWork, organizationID string) ([]dto.ConnectionHealth, error) {
	mappings, err := unit.Mappings().List(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	conflicts, err := unit.Conflicts().List(ctx, organizationID, true, 0)
	if err != nil {
		return nil, err
	}
	runStats, err := unit.Runs().Stats(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	lastStatus := ""
	if runs, err := unit.Runs().List(ctx, organizationID, 1); err == nil && len(runs) > 0 {
		lastStatus = string(runs[0].Status)
	}

	byChannel := map[string]*dto.ConnectionHealth{}
	order := []string{}
	for _, m := range mappings {
		row, ok := byChannel[m.Channel]
		if !ok {
			row = &dto.ConnectionHealth{
				Channel:       m.Channel,
				LastRunAt:     runStats.LastRunAt,
				LastRunStatus: lastStatus,
			}
			byChannel[m.Channel] = row
			order = append(order, m.Channel)
		}
		row.Mappings++
		if m.SyncEnabled {
			row.SyncEnabled++
		}
	}
	for _, c := range conflicts {
		if row, ok := byChannel[c.Channel]; ok {
			row.OpenConflicts++
		}
	}

	out := make([]dto.ConnectionHealth, 0, len(order))
	for _, ch := range order {
		out = append(out, *byChannel[ch])
	}
	return out, nil
}

type DiagnosticsQuery struct {
	OrganizationID string
}

func (q DiagnosticsQuery) Key() string { return diagnosticsKey }

type DiagnosticsHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     OutboxAdmin
	Now        func() time.Time
}

func (h *DiagnosticsHandler) Handle(ctx context.Context, q DiagnosticsQuery) (dto.Diagnostics, error) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	outboxStats, err := h.Outbox.Stats(ctx)
	if err != nil {
		return dto.Diagnostics{}, err
	}

	unit, ctx, cleanup, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Diagnostics{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	runStats, err := unit.Runs().Stats(ctx, q.OrganizationID)
	if err != nil {
		return dto.Diagnostics{}, err
	}
	byKind, err := unit.Conflicts().CountByKind(ctx, q.OrganizationID)
	if err != nil {
		return dto.Diagnostics{}, err
	}
	kinds := make(map[string]int64, len(byKind))
	for k, n := range byKind {
		kinds[string(k)] = n
	}
	connections, err := connectionHealth(ctx, unit, q.OrganizationID)
	if err != nil {
		return dto.Diagnostics{}, err
	}

	return dto.Diagnostics{
		Outbox: outboxStats,
		Runs: dto.RunStatsView{
			Total:     runStats.Total,
			Completed: runStats.Completed,
			Failed:    runStats.Failed,
			LastRunAt: runStats.LastRunAt,
		},
		ConflictTotal: kinds,
		Connections:   connections,
		GeneratedAt:   now().UTC(),
	}, nil
}

var (
	_ queries.Handler[ListOutboxQuery, []dto.OutboxEntry]            = (*ListOutboxHandler)(nil)
	_ queries.Handler[OutboxStatsQuery, dto.OutboxStats]             = (*OutboxStatsHandler)(nil)
	_ queries.Handler[ListConflictsQuery, []dto.ConflictView]        = (*ListConflictsHandler)(nil)
	_ queries.Handler[ListMappingsQuery, []dto.MappingView]          = (*ListMappingsHandler)(nil)
	_ queries.Handler[GetMappingQuery, dto.MappingView]              = (*GetMappingHandler)(nil)
	_ queries.Handler[ListRunsQuery, []dto.RunView]                  = (*ListRunsHandler)(nil)
	_ queries.Handler[RunStatsQuery, dto.RunStatsView]               = (*RunStatsHandler)(nil)
	_ queries.Handler[ConnectionHealthQuery, []dto.ConnectionHealth] = (*ConnectionHealthHandler)(nil)
	_ queries.Handler[DiagnosticsQuery, dto.Diagnostics]             = (*DiagnosticsHandler)(nil)
)
