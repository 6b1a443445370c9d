package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewClient opens a Redis client for the given broker URL.
func NewClient(brokerURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Info describes the broker-side state of a queue.
type Info struct {
	// Name is the queue name recorded in the broker by the last worker
	// to register. Empty when no worker has ever registered.
	Name string

	// Workers is the number of workers with a live registration.
	Workers int
}

// Queue is a named job queue bound to a Redis client. All broker keys
// are prefixed with "<app>:<name>:".
type Queue struct {
	client *redis.Client
	app    string
	name   string
	codec  Codec
	logger *slog.Logger
}

// New creates a Queue over an open Redis client. If logger is nil, the
// default logger is used.
func New(client *redis.Client, app, name string, logger *slog.Logger) *Queue {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client: client,
		app:    app,
		name:   name,
		codec:  JSONCodec,
		logger: logger.With(
			slog.String("component", "queue"),
			slog.String("queue", name)),
	}
}

// Name returns the configured queue name.
func (q *Queue) Name() string {
	return q.name
}

// Namespace returns the broker key for key within this queue's prefix.
func (q *Queue) Namespace(key string) string {
	return fmt.Sprintf("%s:%s:%s", q.app, q.name, key)
}

func (q *Queue) pendingKey() string    { return q.Namespace("pending") }
func (q *Queue) processingKey() string { return q.Namespace("processing") }
func (q *Queue) deadlinesKey() string  { return q.Namespace("deadlines") }
func (q *Queue) nameKey() string       { return q.Namespace("name") }

func (q *Queue) workerKey(workerID string) string {
	return q.Namespace("worker:" + workerID)
}

// Enqueue pushes a new job onto the pending list. The payload is
// JSON-encoded; timeout bounds the job's execution once a worker picks
// it up. Broker errors are returned to the caller, never retried here.
func (q *Queue) Enqueue(ctx context.Context, jobName string, payload any, timeout time.Duration) (*Job, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload for job %q: %w", jobName, err)
		}
		raw = data
	}

	job := Job{
		ID:         uuid.New(),
		Name:       jobName,
		Payload:    raw,
		Timeout:    timeout,
		EnqueuedAt: time.Now().UTC(),
	}

	encoded, err := q.codec.Encode(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %q: %w", jobName, err)
	}

	if err := q.client.LPush(ctx, q.pendingKey(), encoded).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job %q: %w", jobName, err)
	}

	q.logger.Debug("job enqueued",
		slog.String("job", jobName),
		slog.String("job_id", job.ID.String()))
	return &job, nil
}

// Info reads the queue name recorded by workers and counts the live
// worker registrations.
func (q *Queue) Info(ctx context.Context) (Info, error) {
	name, err := q.client.Get(ctx, q.nameKey()).Result()
	if err != nil && err != redis.Nil {
		return Info{}, fmt.Errorf("failed to read queue metadata: %w", err)
	}

	workers := 0
	var cursor uint64
	pattern := q.workerKey("*")
	for {
		keys, next, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return Info{}, fmt.Errorf("failed to scan worker registrations: %w", err)
		}
		workers += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return Info{Name: name, Workers: workers}, nil
}

// Close disconnects from the broker.
func (q *Queue) Close() error {
	return q.client.Close()
}
