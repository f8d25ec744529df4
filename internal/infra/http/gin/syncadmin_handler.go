package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
	"staysync/internal/app/handlers/syncadmin"
	"staysync/internal/app/queries"
)

type SyncAdminHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h SyncAdminHandler) ListOutbox(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.ListOutboxQuery{
		Status: c.Query("status"),
		Limit:  parseIntQuery(c.Query("limit")),
	}
	result, err := queries.Ask[syncadmin.ListOutboxQuery, []dto.OutboxEntry](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) OutboxStats(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	result, err := queries.Ask[syncadmin.OutboxStatsQuery, dto.OutboxStats](c.Request.Context(), h.Queries, syncadmin.OutboxStatsQuery{})
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) RetryOutbox(c *gin.Context) {
	if h.Commands == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	result, err := commands.Dispatch[syncadmin.BulkRetryOutboxCommand, dto.BulkRetryResult](c.Request.Context(), h.Commands, syncadmin.BulkRetryOutboxCommand{})
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) ListConflicts(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.ListConflictsQuery{
		OrganizationID: c.Param("organizationId"),
		OnlyOpen:       c.Query("open") != "false",
		Limit:          parseIntQuery(c.Query("limit")),
	}
	result, err := queries.Ask[syncadmin.ListConflictsQuery, []dto.ConflictView](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) ListMappings(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.ListMappingsQuery{OrganizationID: c.Param("organizationId")}
	result, err := queries.Ask[syncadmin.ListMappingsQuery, []dto.MappingView](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) GetMapping(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.GetMappingQuery{MappingID: c.Param("mappingId")}
	result, err := queries.Ask[syncadmin.GetMappingQuery, dto.MappingView](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) ListRuns(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.ListRunsQuery{
		OrganizationID: c.Param("organizationId"),
		Limit:          parseIntQuery(c.Query("limit")),
	}
	result, err := queries.Ask[syncadmin.ListRunsQuery, []dto.RunView](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) RunStats(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.RunStatsQuery{OrganizationID: c.Param("organizationId")}
	result, err := queries.Ask[syncadmin.RunStatsQuery, dto.RunStatsView](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reconcileRequest struct {
	PropertyID string `json:"property_id"`
}

func (h SyncAdminHandler) TriggerReconciliation(c *gin.Context) {
	if h.Commands == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	var req reconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.Logger, http.StatusBadRequest, err)
			return
		}
	}
	cmd := syncadmin.TriggerReconciliationCommand{
		OrganizationID: c.Param("organizationId"),
		PropertyID:     req.PropertyID,
	}
	result, err := commands.Dispatch[syncadmin.TriggerReconciliationCommand, dto.RunView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		if errors.Is(err, syncadmin.ErrReconcilerUnavailable) {
			respondError(c, h.Logger, http.StatusServiceUnavailable, err)
			return
		}
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (h SyncAdminHandler) Connections(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.ConnectionHealthQuery{OrganizationID: c.Param("organizationId")}
	result, err := queries.Ask[syncadmin.ConnectionHealthQuery, []dto.ConnectionHealth](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SyncAdminHandler) Diagnostics(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	query := syncadmin.DiagnosticsQuery{OrganizationID: c.Param("organizationId")}
	result, err := queries.Ask[syncadmin.DiagnosticsQuery, dto.Diagnostics](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ SyncAdminHTTP = SyncAdminHandler{}
