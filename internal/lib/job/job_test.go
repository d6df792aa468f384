package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/deppfellow/tourbook/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	kind, to, name, url string
}

type fakeMailer struct {
	sent []sent
	err  error
}

func (m *fakeMailer) SendWelcomeEmail(_ context.Context, to, name, url string) error {
	m.sent = append(m.sent, sent{"welcome", to, name, url})
	return m.err
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, name, url string) error {
	m.sent = append(m.sent, sent{"reset", to, name, url})
	return m.err
}

func newInline(t *testing.T, m Mailer) *JobService {
	t.Helper()
	logger := zerolog.Nop()
	j := NewJobService(&logger, &config.Config{}, m)
	require.True(t, j.Inline())
	require.NoError(t, j.Start())
	t.Cleanup(j.Stop)
	return j
}

func TestNewEmailTasks(t *testing.T) {
	task, err := NewPasswordResetEmailTask("jane@example.com", "Jane", "http://x/reset/abc")
	require.NoError(t, err)
	assert.Equal(t, TaskPasswordReset, task.Type())

	var p EmailPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, EmailPayload{To: "jane@example.com", FirstName: "Jane", URL: "http://x/reset/abc"}, p)
}

func TestInline_SendsImmediately(t *testing.T) {
	m := &fakeMailer{}
	j := newInline(t, m)
	ctx := context.Background()

	require.NoError(t, j.SendWelcomeEmail(ctx, "jane@example.com", "Jane", "http://x/me"))
	require.NoError(t, j.SendPasswordResetEmail(ctx, "jane@example.com", "Jane", "http://x/reset/abc"))

	assert.Equal(t, []sent{
		{"welcome", "jane@example.com", "Jane", "http://x/me"},
		{"reset", "jane@example.com", "Jane", "http://x/reset/abc"},
	}, m.sent)
}

func TestInline_PropagatesMailerError(t *testing.T) {
	j := newInline(t, &fakeMailer{err: errors.New("smtp down")})

	err := j.SendWelcomeEmail(context.Background(), "jane@example.com", "Jane", "")
	assert.EqualError(t, err, "smtp down")
}

func TestInline_RejectsBadPayload(t *testing.T) {
	j := newInline(t, &fakeMailer{})

	err := j.Enqueue(context.Background(), asynq.NewTask(TaskWelcome, []byte("{")))
	assert.ErrorContains(t, err, "failed to unmarshal welcome email payload")
}
