package services

import "context"

type contextKey string

const (
	claimIDKey contextKey = "claim_id"
	stageKey   contextKey = "stage"
	workerKey  contextKey = "worker"
	queueKey   contextKey = "queue"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithClaimID annotates ctx with the correlation id of a claimed item.
func WithClaimID(ctx context.Context, id string) context.Context {
	return withString(ctx, claimIDKey, id)
}

func ClaimIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, claimIDKey) }

// WithStage annotates ctx with the pipeline stage ("crop" or "ocr").
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, stageKey) }

// WithWorker annotates ctx with the worker instance name, e.g. image_worker_2.
func WithWorker(ctx context.Context, worker string) context.Context {
	return withString(ctx, workerKey, worker)
}

func WorkerFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, workerKey) }

// WithQueue annotates ctx with the queue an operation acts on.
func WithQueue(ctx context.Context, queue string) context.Context {
	return withString(ctx, queueKey, queue)
}

func QueueFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, queueKey) }
