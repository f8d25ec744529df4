package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
	"staysync/internal/app/handlers/calendarops"
	"staysync/internal/app/queries"
	domaincalendar "staysync/internal/domain/calendar"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/pricing"
)

type CalendarHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type rangeMutationRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Source string `json:"source"`
	Notes  string `json:"notes"`
	Actor  string `json:"actor"`
}

type updatePriceRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	PriceMinor int64  `json:"price_minor"`
	Currency   string `json:"currency"`
	Actor      string `json:"actor"`
}

func (h CalendarHandler) Availability(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	from, to, err := parseDayRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	query := calendarops.GetAvailabilityQuery{
		OrganizationID: c.Param("organizationId"),
		PropertyID:     c.Param("propertyId"),
		From:           from,
		To:             to,
	}
	result, err := queries.Ask[calendarops.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) Block(c *gin.Context) {
	if h.Commands == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	var req rangeMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	from, to, err := parseDayRange(req.From, req.To)
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	cmd := calendarops.BlockDatesCommand{
		OrganizationID:  c.Param("organizationId"),
		PropertyID:      c.Param("propertyId"),
		From:            from,
		To:              to,
		Source:          req.Source,
		Notes:           req.Notes,
		ActorID:         req.Actor,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[calendarops.BlockDatesCommand, *dto.MutationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) Unblock(c *gin.Context) {
	if h.Commands == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	var req rangeMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	from, to, err := parseDayRange(req.From, req.To)
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	cmd := calendarops.UnblockDatesCommand{
		OrganizationID:  c.Param("organizationId"),
		PropertyID:      c.Param("propertyId"),
		From:            from,
		To:              to,
		Source:          req.Source,
		ActorID:         req.Actor,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[calendarops.UnblockDatesCommand, *dto.MutationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) UpdatePrice(c *gin.Context) {
	if h.Commands == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	from, to, err := parseDayRange(req.From, req.To)
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	cmd := calendarops.UpdatePriceCommand{
		OrganizationID:  c.Param("organizationId"),
		PropertyID:      c.Param("propertyId"),
		From:            from,
		To:              to,
		PriceMinor:      req.PriceMinor,
		Currency:        req.Currency,
		ActorID:         req.Actor,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[calendarops.UpdatePriceCommand, *dto.MutationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CalendarHandler) handleError(c *gin.Context, err error) {
	respondError(c, h.Logger, statusForError(err), err)
}

// statusForError maps domain errors onto the REST surface. Anything unmapped
// is an internal failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domaincalendar.ErrInvalidRange),
		errors.Is(err, domaincalendar.ErrForbiddenTransition):
		return http.StatusBadRequest
	case errors.Is(err, domaincalendar.ErrConcurrentMutation):
		return http.StatusConflict
	case errors.Is(err, domainchannels.ErrMappingNotFound),
		errors.Is(err, pricing.ErrNoRateConfigured):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, status int, err error) {
	if logger != nil && status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err, "path", c.FullPath())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parseDayRange accepts ISO dates and RFC3339 instants; instants collapse to
// their UTC day downstream.
func parseDayRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := parseDay(fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be a valid date")
	}
	to, err := parseDay(toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be a valid date")
	}
	return from, to, nil
}

func parseDay(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

var _ CalendarHTTP = CalendarHandler{}
