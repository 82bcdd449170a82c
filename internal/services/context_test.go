package services_test

import (
	"context"
	"testing"

	"folio/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithClaimID(ctx, "claim-123")
	ctx = services.WithStage(ctx, "crop")
	ctx = services.WithWorker(ctx, "image_worker_2")
	ctx = services.WithQueue(ctx, "images:to_process")

	if id, ok := services.ClaimIDFromContext(ctx); !ok || id != "claim-123" {
		t.Fatalf("unexpected claim id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "crop" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if worker, ok := services.WorkerFromContext(ctx); !ok || worker != "image_worker_2" {
		t.Fatalf("unexpected worker: %v %v", worker, ok)
	}
	if queue, ok := services.QueueFromContext(ctx); !ok || queue != "images:to_process" {
		t.Fatalf("unexpected queue: %v %v", queue, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
