package status_test

import (
	"context"
	"testing"
	"time"

	"folio/internal/broker"
	"folio/internal/status"
)

func TestReporterWritesStatusAndPID(t *testing.T) {
	store := broker.NewMemory()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	reporter := status.NewReporter(store, status.InstanceName("image_worker", 2)).WithClock(func() time.Time { return at })
	ctx := context.Background()

	if err := reporter.Set(ctx, status.Processing("/in/a.tif")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := reporter.RegisterPID(ctx, 4242); err != nil {
		t.Fatalf("RegisterPID: %v", err)
	}

	value, ok, _ := store.Get(ctx, "status:image_worker_2")
	if !ok || value != "02/01/24 03:04:05: Processing /in/a.tif" {
		t.Fatalf("unexpected status %q ok=%v", value, ok)
	}
	pid, ok, _ := store.Get(ctx, "pid:image_worker_2")
	if !ok || pid != "4242" {
		t.Fatalf("unexpected pid %q", pid)
	}

	entry := status.Parse(reporter.Name(), value)
	if !entry.At.Equal(at) || entry.Message != "Processing /in/a.tif" {
		t.Fatalf("unexpected parse: %+v", entry)
	}
}

func TestInstanceNames(t *testing.T) {
	if got := status.InstanceName("ocr_worker", 0); got != "ocr_worker" {
		t.Fatalf("InstanceName without number = %q", got)
	}
	base, n := status.SplitInstance("ocr_worker_12")
	if base != "ocr_worker" || n != 12 {
		t.Fatalf("SplitInstance = %q %d", base, n)
	}
	base, n = status.SplitInstance("ocr_worker")
	if base != "ocr_worker" || n != 0 {
		t.Fatalf("SplitInstance without suffix = %q %d", base, n)
	}
}

func TestMessages(t *testing.T) {
	if got := status.Sleeping("15s"); got != "No items in queue, sleeping for 15s" {
		t.Fatalf("Sleeping = %q", got)
	}
	if got := status.Fatal("No Tesseract found!"); got != "Terminated with fatal error - No Tesseract found!" {
		t.Fatalf("Fatal = %q", got)
	}
	entry := status.Parse("w", "free text")
	if !entry.At.IsZero() || entry.Message != "free text" {
		t.Fatalf("unexpected parse of free text: %+v", entry)
	}
}
