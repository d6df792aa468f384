package email

import (
	"fmt"
	"sort"
)

// PreviewData holds sample data for rendering each template locally.
var PreviewData = map[Template]map[string]string{
	TemplateWelcome: {
		"UserFirstName": "Jonas",
		"URL":           "http://localhost:8080/me",
	},
	TemplatePasswordReset: {
		"UserFirstName": "Jonas",
		"URL":           "http://localhost:8080/api/v1/users/resetPassword/3f1c",
	},
}

// Templates lists the templates that have preview data, sorted by name.
func Templates() []Template {
	out := make([]Template, 0, len(PreviewData))
	for name := range PreviewData {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Preview renders name with its sample data.
func Preview(name Template) (string, error) {
	data, ok := PreviewData[name]
	if !ok {
		return "", fmt.Errorf("no preview data for email template %q", name)
	}
	return Render(name, data)
}
