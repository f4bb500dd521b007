package health

import (
	"context"
	"errors"
	"testing"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestStatusReportsEachCheck(t *testing.T) {
	svc := NewService(map[string]Pinger{
		"records": pingFunc(func(context.Context) error { return nil }),
		"archive": pingFunc(func(context.Context) error { return errors.New("down") }),
	})

	payload, ok := svc.Status(context.Background())
	if ok {
		t.Fatalf("expected overall failure")
	}
	checks := payload["checks"].(map[string]string)
	if checks["records"] != "up" || checks["archive"] != "down" {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestStatusWithoutChecksIsHealthy(t *testing.T) {
	payload, ok := NewService(nil).Status(context.Background())
	if !ok || payload["ok"] != true {
		t.Fatalf("expected healthy payload, got %v", payload)
	}
}
