package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Mailer delivers the transactional emails the jobs send.
type Mailer interface {
	SendWelcomeEmail(ctx context.Context, to, firstName, url string) error
	SendPasswordResetEmail(ctx context.Context, to, firstName, url string) error
}

func (j *JobService) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcome, j.handleWelcomeEmailTask)
	mux.HandleFunc(TaskPasswordReset, j.handlePasswordResetEmailTask)
	return mux
}

func (j *JobService) handleWelcomeEmailTask(ctx context.Context, t *asynq.Task) error {
	return j.handleEmail(ctx, t, "welcome", j.mailer.SendWelcomeEmail)
}

func (j *JobService) handlePasswordResetEmailTask(ctx context.Context, t *asynq.Task) error {
	return j.handleEmail(ctx, t, "password_reset", j.mailer.SendPasswordResetEmail)
}

func (j *JobService) handleEmail(
	ctx context.Context,
	t *asynq.Task,
	kind string,
	send func(ctx context.Context, to, firstName, url string) error,
) error {
	var p EmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal %s email payload: %w", kind, err)
	}

	j.logger.Info().
		Str("type", kind).
		Str("to", p.To).
		Msg("Processing email task")

	if err := send(ctx, p.To, p.FirstName, p.URL); err != nil {
		j.logger.Error().
			Str("type", kind).
			Str("to", p.To).
			Err(err).
			Msg("Failed to send email")
		return err
	}

	j.logger.Info().
		Str("type", kind).
		Str("to", p.To).
		Msg("Successfully sent email")

	return nil
}
