package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HandlerFunc executes one job. A nil return acknowledges the job; an
// error leaves it in processing for the reaper to re-enqueue.
type HandlerFunc func(ctx context.Context, job Job) error

// Hook runs at a worker lifecycle boundary.
type Hook func(ctx context.Context) error

// WorkerConfig tunes the worker loops. Zero values fall back to
// defaults in NewWorker.
type WorkerConfig struct {
	// Count is the number of concurrent job-processing goroutines.
	Count int

	// PollTimeout bounds each blocking pop so the consumer notices
	// context cancellation.
	PollTimeout time.Duration

	// HeartbeatInterval is how often the worker refreshes its
	// registration key.
	HeartbeatInterval time.Duration

	// HeartbeatTTL is the registration key lifetime. A worker that
	// misses this many seconds of heartbeats stops counting as live.
	HeartbeatTTL time.Duration

	// ReapInterval is how often jobs stuck in processing past their
	// timeout are moved back to pending.
	ReapInterval time.Duration
}

// Worker consumes jobs from a queue with a fixed pool of goroutines.
// Each worker process registers itself under a TTL'd key so the health
// check can count live workers.
type Worker struct {
	queue    *Queue
	cfg      WorkerConfig
	id       string
	handlers map[string]HandlerFunc
	logger   *slog.Logger

	// OnStartup runs once before any job is consumed; a failure aborts
	// the worker. OnShutdown runs once after the last consumer exits.
	OnStartup  Hook
	OnShutdown Hook
}

// NewWorker creates a worker over the given queue. If logger is nil,
// the default logger is used.
func NewWorker(queue *Queue, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.HeartbeatTTL <= 0 {
		cfg.HeartbeatTTL = 3 * cfg.HeartbeatInterval
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 10 * time.Second
	}

	id := uuid.NewString()
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:    queue,
		cfg:      cfg,
		id:       id,
		handlers: make(map[string]HandlerFunc),
		logger: logger.With(
			slog.String("component", "worker"),
			slog.String("worker_id", id)),
	}
}

// Register binds a handler to a job name. Jobs with an unregistered
// name are acknowledged and dropped with an error log.
func (w *Worker) Register(jobName string, handler HandlerFunc) {
	w.handlers[jobName] = handler
}

// Run starts the worker and blocks until ctx is cancelled and every
// loop has drained. The startup hook runs first; its failure aborts the
// run. The shutdown hook runs last, after the registration is removed.
func (w *Worker) Run(ctx context.Context) error {
	if w.OnStartup != nil {
		if err := w.OnStartup(ctx); err != nil {
			return fmt.Errorf("worker startup failed: %w", err)
		}
	}

	if err := w.register(ctx); err != nil {
		w.logger.Error("initial worker registration failed",
			slog.String("error", err.Error()))
	}

	w.logger.Info("worker started",
		slog.Int("count", w.cfg.Count),
		slog.String("queue", w.queue.Name()))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reapLoop(ctx)
	}()

	for i := 0; i < w.cfg.Count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx)
		}()
	}

	wg.Wait()
	w.deregister()

	if w.OnShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.OnShutdown(shutdownCtx); err != nil {
			return fmt.Errorf("worker shutdown failed: %w", err)
		}
	}

	w.logger.Info("worker stopped")
	return nil
}

// register writes this worker's TTL'd key and records the queue name in
// the broker metadata, for the health check to read back.
func (w *Worker) register(ctx context.Context) error {
	q := w.queue
	if err := q.client.Set(ctx, q.workerKey(w.id), time.Now().UTC().Format(time.RFC3339), w.cfg.HeartbeatTTL).Err(); err != nil {
		return err
	}
	return q.client.Set(ctx, q.nameKey(), q.name, 0).Err()
}

func (w *Worker) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.queue.client.Del(ctx, w.queue.workerKey(w.id)).Err(); err != nil {
		w.logger.Warn("failed to remove worker registration",
			slog.String("error", err.Error()))
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.register(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("heartbeat failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context) {
	q := w.queue
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := q.client.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", w.cfg.PollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to pop job",
				slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollTimeout):
			}
			continue
		}

		w.process(ctx, raw)
	}
}

// process runs one job. Success acknowledges it; failure leaves the raw
// entry in processing with its deadline, so the reaper re-enqueues it
// once the timeout elapses.
func (w *Worker) process(ctx context.Context, raw string) {
	q := w.queue

	job, err := q.codec.Decode([]byte(raw))
	if err != nil {
		w.logger.Error("dropping undecodable job",
			slog.String("error", err.Error()))
		w.ack(raw)
		return
	}

	log := w.logger.With(
		slog.String("job", job.Name),
		slog.String("job_id", job.ID.String()))

	handler, ok := w.handlers[job.Name]
	if !ok {
		log.Error("dropping job with no registered handler")
		w.ack(raw)
		return
	}

	if job.Timeout > 0 {
		deadline := time.Now().Add(job.Timeout)
		if err := q.client.ZAdd(ctx, q.deadlinesKey(), redis.Z{
			Score:  float64(deadline.Unix()),
			Member: raw,
		}).Err(); err != nil {
			log.Warn("failed to record job deadline",
				slog.String("error", err.Error()))
		}
	}

	jobCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := handler(jobCtx, job); err != nil {
		log.Error("job failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return
	}

	w.ack(raw)
	log.Debug("job completed",
		slog.Duration("elapsed", time.Since(start)))
}

// ack removes a job from the processing list and drops its deadline.
// Run on a fresh context so shutdown does not lose completed work.
func (w *Worker) ack(raw string) {
	q := w.queue
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := q.client.Pipeline()
	pipe.LRem(ctx, q.processingKey(), 1, raw)
	pipe.ZRem(ctx, q.deadlinesKey(), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		w.logger.Error("failed to acknowledge job",
			slog.String("error", err.Error()))
	}
}

func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.reapOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("reaper pass failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// reapOnce moves every job whose deadline has passed from processing
// back to pending. A job already acknowledged by another worker has no
// processing entry left, so only the stale deadline is dropped.
func (w *Worker) reapOnce(ctx context.Context) error {
	q := w.queue

	expired, err := q.client.ZRangeByScore(ctx, q.deadlinesKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to list expired deadlines: %w", err)
	}

	for _, raw := range expired {
		removed, err := q.client.LRem(ctx, q.processingKey(), 1, raw).Result()
		if err != nil {
			return fmt.Errorf("failed to remove stuck job from processing: %w", err)
		}
		if err := q.client.ZRem(ctx, q.deadlinesKey(), raw).Err(); err != nil {
			return fmt.Errorf("failed to drop job deadline: %w", err)
		}
		if removed == 0 {
			continue
		}

		if err := q.client.LPush(ctx, q.pendingKey(), raw).Err(); err != nil {
			return fmt.Errorf("failed to re-enqueue stuck job: %w", err)
		}
		w.logger.Warn("re-enqueued job stuck in processing")
	}
	return nil
}
