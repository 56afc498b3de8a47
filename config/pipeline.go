package config

import "strings"

// PipelineConfig configures the chunk runner executed inside each batch job.
type PipelineConfig struct {
	// Experiment and Member identify the model run being processed (e.g. historical, r1i1p1).
	Experiment string `env:"PIPELINE_EXPERIMENT" envDefault:"historical"`
	Member     string `env:"PIPELINE_MEMBER"     envDefault:"r1i1p1"`

	// InputDir is where fetched model output is staged.
	InputDir string `env:"PIPELINE_INPUT_DIR" envDefault:"./input"`
	// OutputDir receives computed IVT files.
	OutputDir string `env:"PIPELINE_OUTPUT_DIR" envDefault:"./output"`
	// WorkDir holds per-month scratch files.
	WorkDir string `env:"PIPELINE_WORK_DIR" envDefault:"./work"`

	// Command is the per-month pipeline executable used when no stages file is given.
	// It is invoked as: Command model experiment member yyyymm input_dir output_dir.
	Command string `env:"PIPELINE_COMMAND" envDefault:"ivt-month.sh"`

	// DoneOutput is an optional template for the file whose presence marks a month done
	// when running the single default stage.
	DoneOutput string `env:"PIPELINE_DONE_OUTPUT" envDefault:"{{.OutputDir}}/IVT_{{.Model}}_{{.Experiment}}_{{.Member}}_{{.YearMonth}}.nc"`

	// StagesFile points to a YAML stage list; overrides Command/DoneOutput.
	StagesFile string `env:"PIPELINE_STAGES_FILE"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	p.Experiment = strings.TrimSpace(p.Experiment)
	p.Member = strings.TrimSpace(p.Member)
	p.Command = strings.TrimSpace(p.Command)
	p.StagesFile = strings.TrimSpace(p.StagesFile)
	if p.InputDir == "" {
		p.InputDir = "."
	}
	if p.OutputDir == "" {
		p.OutputDir = "."
	}
	if p.WorkDir == "" {
		p.WorkDir = "."
	}
}
