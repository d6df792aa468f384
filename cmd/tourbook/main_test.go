package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEmailPreview_ListsTemplates(t *testing.T) {
	out, err := run(t, "email", "preview")
	require.NoError(t, err)
	assert.Equal(t, "password_reset\nwelcome\n", out)
}

func TestEmailPreview_RendersTemplate(t *testing.T) {
	out, err := run(t, "email", "preview", "welcome")
	require.NoError(t, err)
	assert.Contains(t, out, "Hi Jonas,")
	assert.Contains(t, out, "http://localhost:8080/me")
}

func TestEmailPreview_UnknownTemplate(t *testing.T) {
	_, err := run(t, "email", "preview", "invoice")
	assert.EqualError(t, err, `no preview data for email template "invoice"`)
}
