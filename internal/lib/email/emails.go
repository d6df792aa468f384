package email

import "context"

// SendWelcomeEmail greets a new user and links to their account page.
func (c *Client) SendWelcomeEmail(ctx context.Context, to, firstName, url string) error {
	return c.SendEmail(ctx, to, "Welcome to the Tourbook family!", TemplateWelcome, map[string]string{
		"UserFirstName": firstName,
		"URL":           url,
	})
}

// SendPasswordResetEmail sends the reset link. It is valid for 10 minutes.
func (c *Client) SendPasswordResetEmail(ctx context.Context, to, firstName, url string) error {
	return c.SendEmail(ctx, to, "Your password reset token (valid for only 10 minutes)", TemplatePasswordReset, map[string]string{
		"UserFirstName": firstName,
		"URL":           url,
	})
}
