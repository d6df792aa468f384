// Package job runs background work on Asynq, a Redis-backed task queue.
//
// Without a Redis address the service runs inline: enqueued tasks are
// handled synchronously in the caller's goroutine.
package job

import (
	"context"

	"github.com/deppfellow/tourbook/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

type JobService struct {
	Client *asynq.Client
	server *asynq.Server
	logger *zerolog.Logger
	mailer Mailer
}

// NewJobService creates a JobService using the Redis server from cfg.
func NewJobService(logger *zerolog.Logger, cfg *config.Config, mailer Mailer) *JobService {
	j := &JobService{logger: logger, mailer: mailer}

	redisAddr := cfg.Redis.Address
	if redisAddr == "" {
		return j
	}

	j.Client = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	j.server = asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)
	return j
}

// Inline reports whether tasks run synchronously instead of through Redis.
func (j *JobService) Inline() bool { return j.Client == nil }

// Start registers the task handlers and starts the worker server. It
// returns once the workers are running.
func (j *JobService) Start() error {
	if j.Inline() {
		j.logger.Warn().Msg("No Redis address configured, background jobs run inline")
		return nil
	}

	j.logger.Info().Msg("Starting background job server")
	return j.server.Start(j.mux())
}

// Stop waits for running tasks and closes the Redis connections.
func (j *JobService) Stop() {
	if j.Inline() {
		return
	}
	j.logger.Info().Msg("Stopping background job server")
	j.server.Shutdown()
	j.Client.Close()
}

// Enqueue schedules task, or handles it immediately in inline mode.
func (j *JobService) Enqueue(ctx context.Context, task *asynq.Task) error {
	if j.Inline() {
		return j.mux().ProcessTask(ctx, task)
	}

	info, err := j.Client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	j.logger.Debug().
		Str("type", task.Type()).
		Str("id", info.ID).
		Str("queue", info.Queue).
		Msg("Enqueued task")
	return nil
}

// SendWelcomeEmail enqueues the welcome email for a new user.
func (j *JobService) SendWelcomeEmail(ctx context.Context, to, firstName, url string) error {
	task, err := NewWelcomeEmailTask(to, firstName, url)
	if err != nil {
		return err
	}
	return j.Enqueue(ctx, task)
}

// SendPasswordResetEmail enqueues the email carrying a reset link.
func (j *JobService) SendPasswordResetEmail(ctx context.Context, to, firstName, url string) error {
	task, err := NewPasswordResetEmailTask(to, firstName, url)
	if err != nil {
		return err
	}
	return j.Enqueue(ctx, task)
}
