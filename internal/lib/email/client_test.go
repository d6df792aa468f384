package email

import (
	"context"
	"testing"

	"github.com/deppfellow/tourbook/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	for name, data := range PreviewData {
		t.Run(string(name), func(t *testing.T) {
			html, err := Render(name, data)
			require.NoError(t, err)
			assert.Contains(t, html, "Hi Jonas,")
			assert.Contains(t, html, data["URL"])
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, []Template{TemplatePasswordReset, TemplateWelcome}, Templates())

	html, err := Preview(TemplatePasswordReset)
	require.NoError(t, err)
	assert.Contains(t, html, "/api/v1/users/resetPassword/3f1c")

	_, err = Preview("invoice")
	assert.EqualError(t, err, `no preview data for email template "invoice"`)
}

func TestRender_EscapesData(t *testing.T) {
	html, err := Render(TemplateWelcome, map[string]string{"UserFirstName": "<script>", "URL": "/me"})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestSendEmail_WithoutAPIKeyLogsOnly(t *testing.T) {
	logger := zerolog.Nop()
	c := NewClient(&config.Config{}, &logger)

	assert.NoError(t, c.SendWelcomeEmail(context.Background(), "jane@example.com", "Jane", "http://localhost/me"))
}
