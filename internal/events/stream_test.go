package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/records"
)

type fakeSource struct {
	mu   sync.Mutex
	recs []records.Record
	err  error
}

func (f *fakeSource) add(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append([]records.Record{{ID: id, Filename: name, UploadedAt: time.Now().UTC()}}, f.recs...)
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) IDs(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]int64, 0, len(f.recs))
	for _, r := range f.recs {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (f *fakeSource) List(context.Context) ([]records.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]records.Record(nil), f.recs...), nil
}

func runStream(t *testing.T, src Source) (<-chan Frame, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan Frame, 16)
	done := make(chan error, 1)
	s := &Stream{Source: src, Interval: 5 * time.Millisecond}
	go func() {
		done <- s.Run(ctx, func(f Frame) error {
			frames <- f
			return nil
		})
	}()
	t.Cleanup(cancel)
	return frames, cancel, done
}

func nextFrame(t *testing.T, frames <-chan Frame) Frame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
		return Frame{}
	}
}

func expectQuiet(t *testing.T, frames <-chan Frame, d time.Duration) {
	t.Helper()
	select {
	case f := <-frames:
		t.Fatalf("unexpected frame %+v", f)
	case <-time.After(d):
	}
}

func TestStreamInitialSnapshotThenChangesOnly(t *testing.T) {
	src := &fakeSource{}
	frames, cancel, done := runStream(t, src)

	first := nextFrame(t, frames)
	if first.Err != "" || first.Records == nil || len(first.Records) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", first)
	}

	expectQuiet(t, frames, 50*time.Millisecond)

	src.add(1, "uno.pdf")
	second := nextFrame(t, frames)
	if len(second.Records) != 1 || second.Records[0].ID != 1 {
		t.Fatalf("expected snapshot with record 1, got %+v", second)
	}

	src.add(2, "dos.pdf")
	third := nextFrame(t, frames)
	if len(third.Records) != 2 || third.Records[0].ID != 2 {
		t.Fatalf("expected full snapshot newest first, got %+v", third)
	}

	expectQuiet(t, frames, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop after cancel")
	}
}

func TestStreamSurvivesPollFailure(t *testing.T) {
	src := &fakeSource{}
	src.add(1, "uno.pdf")
	frames, _, _ := runStream(t, src)

	if f := nextFrame(t, frames); len(f.Records) != 1 {
		t.Fatalf("expected initial snapshot, got %+v", f)
	}

	src.fail(errors.New("connection reset"))
	if f := nextFrame(t, frames); f.Err == "" {
		t.Fatalf("expected error frame, got %+v", f)
	}

	src.fail(nil)
	src.add(2, "dos.pdf")
	for {
		f := nextFrame(t, frames)
		if f.Err != "" {
			continue
		}
		if len(f.Records) != 2 {
			t.Fatalf("expected recovered snapshot, got %+v", f)
		}
		break
	}
}

func TestStreamStopsWhenEmitFails(t *testing.T) {
	s := &Stream{Source: &fakeSource{}, Interval: time.Millisecond}
	gone := errors.New("client gone")
	if err := s.Run(context.Background(), func(Frame) error { return gone }); !errors.Is(err, gone) {
		t.Fatalf("expected emit error, got %v", err)
	}
}

func TestSameSetIgnoresOrder(t *testing.T) {
	known := map[int64]struct{}{1: {}, 2: {}, 3: {}}
	tests := []struct {
		ids  []int64
		want bool
	}{
		{ids: []int64{3, 1, 2}, want: true},
		{ids: []int64{1, 2}, want: false},
		{ids: []int64{1, 2, 3, 4}, want: false},
		{ids: []int64{1, 2, 4}, want: false},
	}
	for _, tt := range tests {
		if got := sameSet(known, tt.ids); got != tt.want {
			t.Fatalf("sameSet(%v) = %v, want %v", tt.ids, got, tt.want)
		}
	}
}

func TestEventsEndpointStreamsFrames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := &fakeSource{}
	src.add(7, "recibo.pdf")

	r := gin.New()
	NewHandler(src, 5*time.Millisecond).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	if resp.Header.Get("Cache-Control") != "no-cache" || resp.Header.Get("X-Accel-Buffering") != "no" {
		t.Fatalf("missing streaming headers: %v", resp.Header)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	payload, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
	if !ok {
		t.Fatalf("expected data line, got %q", line)
	}
	var snapshot []records.RecordResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &snapshot); err != nil {
		t.Fatalf("decode snapshot %q: %v", payload, err)
	}
	if len(snapshot) != 1 || snapshot[0].ID != 7 || snapshot[0].Filename != "recibo.pdf" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
}

func TestWriteFrameFormat(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{name: "empty snapshot", frame: Frame{}, want: "data: []\n\n"},
		{name: "error frame", frame: Frame{Err: "stream error"}, want: "data: {\"error\":\"stream error\"}\n\n"},
		{
			name:  "records",
			frame: Frame{Records: []records.RecordResponse{{ID: 3, Filename: "a.pdf"}}},
			want:  `data: [{"id":3,"filename":"a.pdf",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			if err := writeFrame(&buf, tt.frame); err != nil {
				t.Fatalf("writeFrame: %v", err)
			}
			if !strings.HasPrefix(buf.String(), tt.want) || !strings.HasSuffix(buf.String(), "\n\n") {
				t.Fatalf("frame = %q, want prefix %q", buf.String(), tt.want)
			}
		})
	}
}
