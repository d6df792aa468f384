package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names as stored in Redis.
const (
	TaskWelcome       = "email:welcome"
	TaskPasswordReset = "email:password_reset"
)

// EmailPayload is the JSON payload shared by the email tasks.
type EmailPayload struct {
	To        string `json:"to"`
	FirstName string `json:"first_name"`
	URL       string `json:"url"`
}

// NewWelcomeEmailTask builds the task sent after signup.
func NewWelcomeEmailTask(to, firstName, url string) (*asynq.Task, error) {
	return newEmailTask(TaskWelcome, EmailPayload{To: to, FirstName: firstName, URL: url}, "default")
}

// NewPasswordResetEmailTask builds the task carrying a reset link. It goes
// to the critical queue because the token expires quickly.
func NewPasswordResetEmailTask(to, firstName, url string) (*asynq.Task, error) {
	return newEmailTask(TaskPasswordReset, EmailPayload{To: to, FirstName: firstName, URL: url}, "critical")
}

func newEmailTask(taskType string, p EmailPayload, queue string) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		taskType,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(queue),
		asynq.Timeout(30*time.Second),
	), nil
}
