package chain

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/target/ivt-chain/internal/domain/model"
)

const (
	// DefaultArgs passes the model and the chunk bounds to the job script positionally.
	DefaultArgs = "{{.Model}} {{.StartYear}} {{.EndYear}} {{.StartMonth}} {{.EndMonth}}"
	// DefaultName names each job after the model and the years it covers.
	DefaultName = "ivt-{{.Model}}-{{.StartYear}}-{{.EndYear}}"
)

// TemplateData is the value the name and argument templates are executed against.
type TemplateData struct {
	Model      string
	StartYear  int
	EndYear    int
	StartMonth int
	EndMonth   int
}

// JobTemplate renders the batch job invocation for each chunk.
type JobTemplate struct {
	script string
	name   *template.Template
	args   *template.Template
}

// NewJobTemplate parses the name and argument templates. Empty strings select DefaultName and DefaultArgs.
func NewJobTemplate(script, name, args string) (*JobTemplate, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("job script is required")
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	if strings.TrimSpace(args) == "" {
		args = DefaultArgs
	}

	nt, err := template.New("name").Option("missingkey=error").Parse(name)
	if err != nil {
		return nil, fmt.Errorf("parse job name template: %w", err)
	}
	at, err := template.New("args").Option("missingkey=error").Parse(args)
	if err != nil {
		return nil, fmt.Errorf("parse job args template: %w", err)
	}
	return &JobTemplate{script: script, name: nt, args: at}, nil
}

// Script returns the job script path.
func (t *JobTemplate) Script() string { return t.script }

// Render builds the JobSpec for one chunk. The rendered argument line is split on whitespace.
func (t *JobTemplate) Render(modelName string, c model.WorkChunk) (model.JobSpec, error) {
	data := TemplateData{
		Model:      modelName,
		StartYear:  c.StartYear,
		EndYear:    c.EndYear,
		StartMonth: c.StartMonth,
		EndMonth:   c.EndMonth,
	}

	var buf bytes.Buffer
	if err := t.name.Execute(&buf, data); err != nil {
		return model.JobSpec{}, fmt.Errorf("render job name: %w", err)
	}
	name := strings.TrimSpace(buf.String())

	buf.Reset()
	if err := t.args.Execute(&buf, data); err != nil {
		return model.JobSpec{}, fmt.Errorf("render job args: %w", err)
	}

	return model.JobSpec{
		Name:   name,
		Script: t.script,
		Args:   strings.Fields(buf.String()),
	}, nil
}
