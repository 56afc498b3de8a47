// Package pipeline runs the per-month processing stages for one work chunk inside a batch job.
package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/target/ivt-chain/config"
	apperrors "github.com/target/ivt-chain/internal/errors"
)

// Stage is one external command run for every month of a chunk.
type Stage struct {
	Name string `yaml:"name"`
	// Command is the argv; every element is a text/template over Vars.
	Command []string `yaml:"command"`
	// Output, when set, is a template for the file the stage produces. An existing output skips the stage.
	Output string `yaml:"output,omitempty"`
}

type stagesFile struct {
	Stages []Stage `yaml:"stages"`
}

// Vars are the template fields available to stage commands and outputs.
type Vars struct {
	Model      string
	Experiment string
	Member     string
	YearMonth  string
	Year       string
	Month      string
	InputDir   string
	OutputDir  string
	WorkDir    string
}

// LoadStages reads a YAML stage list:
//
//	stages:
//	  - name: fetch
//	    command: [fetch.sh, "{{.Model}}", "{{.YearMonth}}", "{{.InputDir}}"]
//	    output: "{{.InputDir}}/{{.Model}}_{{.YearMonth}}.nc"
func LoadStages(path string) ([]Stage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stages file: %w", err)
	}

	var f stagesFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "parse stages file %s", path)
	}
	if len(f.Stages) == 0 {
		return nil, apperrors.ValidationField("stages", "stages file defines no stages")
	}
	return f.Stages, nil
}

// DefaultStages builds the single stage used when no stages file is configured:
// Command model experiment member yyyymm input_dir output_dir.
func DefaultStages(cfg config.PipelineConfig) []Stage {
	return []Stage{{
		Name: "ivt",
		Command: []string{
			cfg.Command,
			"{{.Model}}", "{{.Experiment}}", "{{.Member}}", "{{.YearMonth}}", "{{.InputDir}}", "{{.OutputDir}}",
		},
		Output: cfg.DoneOutput,
	}}
}

// StagesFromConfig loads cfg.StagesFile when set, else returns DefaultStages.
func StagesFromConfig(cfg config.PipelineConfig) ([]Stage, error) {
	if cfg.StagesFile != "" {
		return LoadStages(cfg.StagesFile)
	}
	if cfg.Command == "" {
		return nil, apperrors.ValidationField("command", "pipeline command is required when no stages file is set")
	}
	return DefaultStages(cfg), nil
}

type compiledStage struct {
	name    string
	command []*template.Template
	output  *template.Template
}

func compile(stages []Stage) ([]compiledStage, error) {
	out := make([]compiledStage, 0, len(stages))
	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, apperrors.ValidationField("name", fmt.Sprintf("stage %d has no name", i+1))
		}
		if seen[name] {
			return nil, apperrors.ValidationField("name", fmt.Sprintf("duplicate stage %q", name))
		}
		seen[name] = true
		if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
			return nil, apperrors.ValidationField("command", fmt.Sprintf("stage %q has no command", name))
		}

		cs := compiledStage{name: name}
		for j, arg := range s.Command {
			t, err := template.New(fmt.Sprintf("%s[%d]", name, j)).Option("missingkey=error").Parse(arg)
			if err != nil {
				return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "stage %q command", name)
			}
			cs.command = append(cs.command, t)
		}
		if strings.TrimSpace(s.Output) != "" {
			t, err := template.New(name + ".output").Option("missingkey=error").Parse(s.Output)
			if err != nil {
				return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "stage %q output", name)
			}
			cs.output = t
		}
		out = append(out, cs)
	}
	return out, nil
}

func render(t *template.Template, v Vars) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
