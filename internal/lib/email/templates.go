package email

// Template names a file under templates/, without the extension.
type Template string

const (
	TemplateWelcome       Template = "welcome"
	TemplatePasswordReset Template = "password_reset"
)
