package queryp

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template represents a SQL template.
// Any method on Template spins off a mutable builder so this can be re-used freely.
//
// Templates see three kinds of data:
//   - `{{.Param "id"}}` renders a named param, which becomes a placeholder.
//   - `{{.Var "table"}}` renders a raw string, for identifiers that can't be placeholders.
//   - `{{if .Includes "mysql"}}` toggles optional sections.
type Template struct {
	text *template.Template
}

func NewTemplate(text string) (*Template, error) {
	t, err := template.New("template").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}
	return &Template{
		text: t,
	}, nil
}

func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}
	return t
}

// Build returns a TemplateBuilder that can be used to build custom data for the template.
func (t *Template) Build() *TemplateBuilder {
	return newTemplateBuilder(t)
}

// Placeholderer proxies to a new TemplateBuilder.
func (t *Template) Placeholderer(p Placeholderer) *TemplateBuilder {
	return t.Build().Placeholderer(p)
}

// Param proxies to a new TemplateBuilder.
func (t *Template) Param(key string, val any) *TemplateBuilder {
	return t.Build().Param(key, val)
}

// Params proxies to a new TemplateBuilder.
func (t *Template) Params(params map[string]any) *TemplateBuilder {
	return t.Build().Params(params)
}

// Var proxies to a new TemplateBuilder.
func (t *Template) Var(key, val string) *TemplateBuilder {
	return t.Build().Var(key, val)
}

// Include proxies to a new TemplateBuilder.
func (t *Template) Include(sections ...string) *TemplateBuilder {
	return t.Build().Include(sections...)
}

// Execute proxies to a new TemplateBuilder.
func (t *Template) Execute() (string, []any, error) {
	return t.Build().Execute()
}

////////////////////////////////////////////////////////////////////////////////

type TemplateBuilder struct {
	*Template
	params        map[string]any
	vars          map[string]string
	includes      map[string]bool
	placeholderer Placeholderer
}

func newTemplateBuilder(t *Template) *TemplateBuilder {
	return &TemplateBuilder{
		Template: t,
		params:   make(map[string]any),
		vars:     make(map[string]string),
		includes: make(map[string]bool),
	}
}

func (t *TemplateBuilder) Placeholderer(p Placeholderer) *TemplateBuilder {
	t.placeholderer = p
	return t
}

func (t *TemplateBuilder) Param(key string, val any) *TemplateBuilder {
	return t.Params(map[string]any{key: val})
}

// Params sets multiple named parameters at a time (additive with existing ones).
func (t *TemplateBuilder) Params(params map[string]any) *TemplateBuilder {
	for k, v := range params {
		t.params[k] = v
	}
	return t
}

// Var sets a raw value, rendered as is. Never pass user input here.
func (t *TemplateBuilder) Var(key, val string) *TemplateBuilder {
	t.vars[key] = val
	return t
}

func (t *TemplateBuilder) Include(sections ...string) *TemplateBuilder {
	for _, s := range sections {
		t.includes[s] = true
	}
	return t
}

func (t *TemplateBuilder) Execute() (string, []any, error) {
	data := &templateData{
		params:   t.params,
		vars:     t.vars,
		includes: t.includes,
	}
	buffer := &bytes.Buffer{}
	err := t.Template.text.Execute(buffer, data)
	if err != nil {
		return "", nil, err
	}
	// NamedQuery style params are applied post template execution
	q, args := Named(buffer.String()).
		WithPlaceholderer(t.placeholderer).
		Params(t.params).
		Execute()
	return q, args, nil
}

////////////////////////////////////////////////////////////////////////////////

// templateData is the data object a template will be executed against.
type templateData struct {
	params   map[string]any
	vars     map[string]string
	includes map[string]bool
}

func (t *templateData) Param(key string) string {
	if _, ok := t.params[key]; ok {
		return fmt.Sprintf(":%s", key)
	}
	return ""
}

func (t *templateData) Params() map[string]any {
	return t.params
}

func (t *templateData) HasParams() bool {
	return len(t.params) > 0
}

// Var errors on unknown keys so a typo can't silently render an empty identifier.
func (t *templateData) Var(key string) (string, error) {
	v, ok := t.vars[key]
	if !ok {
		return "", fmt.Errorf("template var %q not set", key)
	}
	return v, nil
}

func (t *templateData) Includes(keys ...string) bool {
	for _, key := range keys {
		if t.includes[key] {
			return true
		}
	}
	return false
}

func (t *templateData) Include(keys ...string) bool {
	return t.Includes(keys...)
}
