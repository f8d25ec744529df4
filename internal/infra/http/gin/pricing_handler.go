package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"staysync/internal/app/commands"
	"staysync/internal/app/dto"
	"staysync/internal/app/handlers/pricingops"
	"staysync/internal/app/queries"
)

type PricingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h PricingHandler) Quote(c *gin.Context) {
	if h.Queries == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("queries bus unavailable"))
		return
	}
	from, to, err := parseDayRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	query := pricingops.GetPricingQuery{
		OrganizationID: c.Param("organizationId"),
		PropertyID:     c.Param("propertyId"),
		From:           from,
		To:             to,
		Channel:        c.Query("channel"),
		StayNights:     parseIntQuery(c.Query("nights")),
		Adults:         parseIntQuery(c.Query("adults")),
		Children:       parseIntQuery(c.Query("children")),
		PromoCode:      c.Query("promo"),
	}
	result, err := queries.Ask[pricingops.GetPricingQuery, dto.Pricing](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type pushPricingRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Channel string `json:"channel"`
}

func (h PricingHandler) Push(c *gin.Context) {
	if h.Commands == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	var req pushPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	from, to, err := parseDayRange(req.From, req.To)
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	cmd := pricingops.PushPricingCommand{
		OrganizationID:  c.Param("organizationId"),
		PropertyID:      c.Param("propertyId"),
		From:            from,
		To:              to,
		Channel:         req.Channel,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[pricingops.PushPricingCommand, *dto.PushResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		if errors.Is(err, pricingops.ErrNoSyncedChannels) {
			respondError(c, h.Logger, http.StatusConflict, err)
			return
		}
		respondError(c, h.Logger, statusForError(err), err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func parseIntQuery(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

var _ PricingHTTP = PricingHandler{}
