package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mudler/xlog"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeReminderTriggered JobType = "reminder_triggered"
)

const (
	DefaultQueue     = "default"
	scheduledSetKey  = "jobs:scheduled"
	deadQueueKey     = "jobs:dead"
	defaultMaxTries  = 3
	defaultJobTTL    = 30 * time.Second
	defaultRetryBase = 30 * time.Second
)

var ErrNoHandler = errors.New("no handler registered for job type")

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Queue     string                 `json:"queue"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	jobTimeout   time.Duration
	retryBase    time.Duration
	now          func() time.Time
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	PollInterval time.Duration
	Queues       []string
	JobTimeout   time.Duration
	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaultJobTTL
	}
	if config.RetryBase <= 0 {
		config.RetryBase = defaultRetryBase
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{DefaultQueue}
	}

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		pollInterval: config.PollInterval,
		jobTimeout:   config.JobTimeout,
		retryBase:    config.RetryBase,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches concurrency consumers plus one loop that moves scheduled
// retries back onto their queues once they are due.
func (w *Worker) Start(concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	xlog.Info("Starting worker", "concurrency", concurrency, "queues", w.queues)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
	w.wg.Add(1)
	go w.schedulerLoop()
}

func (w *Worker) Stop() {
	xlog.Info("Stopping worker")
	w.cancel()
	w.wg.Wait()
	xlog.Info("Worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if err := w.processNextJob(w.ctx); err != nil && w.ctx.Err() == nil {
				xlog.Error("Error processing job", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) schedulerLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.promoteDue(w.ctx); err != nil && w.ctx.Err() == nil {
				xlog.Error("Failed to promote scheduled jobs", "error", err)
			}
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context) error {
	result, err := w.client.BLPop(ctx, w.pollInterval, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}

	if w.now().Before(job.ProcessAt) {
		return schedule(ctx, w.client, &job)
	}
	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("%w: %s", ErrNoHandler, job.Type))
	}

	xlog.Debug("Processing job", "job_id", job.ID, "type", job.Type)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err := runHandler(jobCtx, handler, job)
	if err == nil {
		xlog.Debug("Job completed", "job_id", job.ID)
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		xlog.Warn("Job failed, retrying", "job_id", job.ID, "attempt", job.Attempts, "max_tries", job.MaxTries, "error", err)
		return w.retryJob(ctx, job)
	}

	xlog.Error("Job failed permanently", "job_id", job.ID, "attempts", job.Attempts, "error", err)
	return w.moveToDeadQueue(ctx, job, err)
}

func runHandler(ctx context.Context, handler JobHandler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryBase * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = w.now().Add(delay)
	return schedule(ctx, w.client, job)
}

// promoteDue pushes every scheduled job whose time has come back onto its
// queue. ZREM guards against two workers promoting the same job.
func (w *Worker) promoteDue(ctx context.Context) (int, error) {
	until := strconv.FormatInt(w.now().UnixMilli(), 10)
	members, err := w.client.ZRangeByScore(ctx, scheduledSetKey, &redis.ZRangeBy{Min: "-inf", Max: until}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read scheduled jobs: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := w.client.ZRem(ctx, scheduledSetKey, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to claim scheduled job: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			xlog.Error("Dropping unreadable scheduled job", "error", err)
			continue
		}
		if err := w.client.RPush(ctx, job.Queue, member).Err(); err != nil {
			return promoted, fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
		}
		promoted++
	}
	return promoted, nil
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    w.now(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(ctx, deadQueueKey, deadJobData).Err()
}

func schedule(ctx context.Context, client *redis.Client, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return client.ZAdd(ctx, scheduledSetKey, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: string(jobData),
	}).Err()
}

type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

// EnqueueAt pushes a job straight onto queue, or parks it in the scheduled
// set when processAt lies in the future.
func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	now := time.Now()
	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   payload,
		MaxTries:  defaultMaxTries,
		CreatedAt: now,
		ProcessAt: processAt,
	}

	if processAt.After(now) {
		return schedule(ctx, q.client, job)
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, queue).Result()
}

// Stats reports the depth of each queue plus the scheduled and dead sets.
func (q *JobQueue) Stats(ctx context.Context, queues []string) map[string]int64 {
	stats := make(map[string]int64, len(queues)+2)
	for _, queue := range queues {
		if n, err := q.client.LLen(ctx, queue).Result(); err == nil {
			stats[queue] = n
		}
	}
	if n, err := q.client.ZCard(ctx, scheduledSetKey).Result(); err == nil {
		stats["scheduled"] = n
	}
	if n, err := q.client.LLen(ctx, deadQueueKey).Result(); err == nil {
		stats["dead"] = n
	}
	return stats
}
