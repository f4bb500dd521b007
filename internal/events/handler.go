package events

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoice-backend/internal/records"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/telemetry"
)

// Handler serves GET /events.
type Handler struct {
	Source   Source
	Interval time.Duration
}

// NewHandler constructs a Handler polling src every interval.
func NewHandler(src Source, interval time.Duration) *Handler {
	return &Handler{Source: src, Interval: interval}
}

// RegisterRoutes attaches the event stream route.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/events", h.stream)
}

func (h *Handler) stream(c *gin.Context) {
	subscriber := uuid.NewString()

	header := c.Writer.Header()
	header.Set("Content-Type", sse.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set("Access-Control-Allow-Origin", "*")
	c.Status(http.StatusOK)

	metrics.SubscriberJoined()
	defer metrics.SubscriberLeft()
	telemetry.Info("events.subscribed", map[string]any{
		"subscriber": subscriber,
		"client_ip":  c.ClientIP(),
	})

	started := time.Now()
	s := &Stream{Source: h.Source, Interval: h.Interval, Subscriber: subscriber}
	err := s.Run(c.Request.Context(), func(f Frame) error {
		if err := writeFrame(c.Writer, f); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})

	fields := map[string]any{
		"subscriber":  subscriber,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		fields["err"] = err
	}
	telemetry.Info("events.disconnected", fields)
}

// writeFrame writes f as a single `data: <json>` event.
func writeFrame(w io.Writer, f Frame) error {
	var data any = f.Records
	switch {
	case f.Err != "":
		data = gin.H{"error": f.Err}
	case f.Records == nil:
		data = []records.RecordResponse{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
