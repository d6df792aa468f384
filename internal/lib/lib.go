// Package lib holds infrastructure that does not belong to a single layer:
// background jobs (asynq), email delivery (Resend) and image processing.
package lib
