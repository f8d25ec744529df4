package ginserver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staysync/internal/app/commands"
	"staysync/internal/app/handlers/channelops"
	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/infra/channel"
)

// WebhookHandler receives channel webhooks carrying the same normalized
// envelope the kafka consumer handles. Unmapped listings are acknowledged,
// not rejected; channels deliver their whole account feed.
type WebhookHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

func (h WebhookHandler) Receive(c *gin.Context) {
	if h.Commands == nil {
		respondError(c, h.Logger, http.StatusServiceUnavailable, errors.New("commands bus unavailable"))
		return
	}
	channelName := c.Param("channel")
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}
	var envelope domainchannels.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, err)
		return
	}

	dedupKey := c.GetHeader("Idempotency-Key")
	if dedupKey == "" {
		sum := sha256.Sum256(body)
		dedupKey = channelName + ":" + hex.EncodeToString(sum[:])
	}

	err = h.apply(c, channelName, dedupKey, envelope)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.Is(err, domainchannels.ErrMappingNotFound):
		c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
	case errors.Is(err, errMalformedPayload):
		respondError(c, h.Logger, http.StatusBadRequest, err)
	default:
		respondError(c, h.Logger, statusForError(err), err)
	}
}

var errMalformedPayload = errors.New("malformed event payload")

func (h WebhookHandler) apply(c *gin.Context, channelName, dedupKey string, envelope domainchannels.WebhookEnvelope) error {
	ctx := c.Request.Context()
	switch envelope.EventType {
	case channel.EventCalendarUpdated:
		var event domainchannels.CalendarEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return errMalformedPayload
		}
		_, err := h.Commands.Dispatch(ctx, channelops.ApplyCalendarEventCommand{
			Channel:         channelName,
			Event:           event,
			IdempotencyKeyV: dedupKey,
		})
		return err
	case channel.EventReservationCreated, channel.EventReservationModified, channel.EventReservationCanceled:
		var res domainchannels.Reservation
		if err := json.Unmarshal(envelope.Data, &res); err != nil {
			return errMalformedPayload
		}
		_, err := h.Commands.Dispatch(ctx, channelops.ImportReservationCommand{
			Channel:         channelName,
			Reservation:     res,
			IdempotencyKeyV: dedupKey,
		})
		return err
	default:
		return errors.New("unknown event type: " + envelope.EventType)
	}
}

var _ WebhookHTTP = WebhookHandler{}
