package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsTotal        atomic.Uint64
	uploadsFailedTotal  atomic.Uint64
	ocrFailuresTotal    atomic.Uint64
	eventsSnapshots     atomic.Uint64
	eventsPollFailures  atomic.Uint64
	eventsSubscribers   atomic.Int64
	recordsExportsTotal atomic.Uint64

	ocrDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

func IncUploads() { uploadsTotal.Add(1) }
func IncUploadsFailed() { uploadsFailedTotal.Add(1) }
func IncOCRFailures() { ocrFailuresTotal.Add(1) }
func IncSnapshots() { eventsSnapshots.Add(1) }
func IncPollFailures() { eventsPollFailures.Add(1) }
func IncExports() { recordsExportsTotal.Add(1) }
func SubscriberJoined() { eventsSubscribers.Add(1) }
func SubscriberLeft() { eventsSubscribers.Add(-1) }
func Subscribers() int64 { return eventsSubscribers.Load() }

// ObserveOCRDurationMs records one text extraction call in milliseconds.
func ObserveOCRDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	ocrDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "uploads_total", "Uploads accepted for ingestion", uploadsTotal.Load())
	writeCounter(&buf, "uploads_failed_total", "Uploads that could not be stored", uploadsFailedTotal.Load())
	writeCounter(&buf, "ocr_failures_total", "Text extraction calls that failed", ocrFailuresTotal.Load())
	writeHistogram(&buf, "ocr_duration_ms", "Text extraction duration in milliseconds", ocrDuration.Snapshot())
	writeGauge(&buf, "events_subscribers", "Open change notification streams", eventsSubscribers.Load())
	writeCounter(&buf, "events_snapshots_total", "Snapshots pushed to subscribers", eventsSnapshots.Load())
	writeCounter(&buf, "events_poll_failures_total", "Store polls that failed while streaming", eventsPollFailures.Load())
	writeCounter(&buf, "records_exports_total", "Spreadsheet exports served", recordsExportsTotal.Load())
	return buf.String()
}

// histogram keeps non-cumulative bucket counts; writeHistogram accumulates them.
type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
