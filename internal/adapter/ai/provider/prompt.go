package provider

import (
	"bytes"
	"text/template"
)

var systemPrompt = template.Must(template.New("system").Parse(
	"You are a professional translator. Translate the user's text from {{.From}} to {{.To}}. " +
		"Preserve meaning, tone and formatting. Reply with the translation only, without notes or quotes."))

// SystemPrompt renders the translation instruction for a language pair.
func SystemPrompt(from, to string) (string, error) {
	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, struct{ From, To string }{from, to}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
