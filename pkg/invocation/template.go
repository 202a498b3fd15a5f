package invocation

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

func TemplateString(pattern string, args map[string]interface{}) (string, error) {
	var output bytes.Buffer
	t, err := template.New("value").Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(pattern)
	if err != nil {
		return "", err
	}
	if err := t.Execute(&output, args); err != nil {
		return "", err
	}

	return output.String(), nil
}
