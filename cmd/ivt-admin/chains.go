package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/ivt-chain/internal/bootstrap"
	"github.com/target/ivt-chain/internal/domain/model"
	"github.com/target/ivt-chain/internal/domain/plan"
	"github.com/target/ivt-chain/internal/service"
)

const timeLayout = "2006-01-02 15:04:05"

func runPlan(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	modelName, req, err := parsePlanArgs(fs.Args())
	if err != nil {
		return err
	}
	chunks, err := plan.Plan(req)
	if err != nil {
		return err
	}
	tmpl, err := bootstrap.NewJobTemplate(cmdCtx.Config.Queue)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "CHUNK\tMONTHS\tJOB NAME\tCOMMAND"); err != nil {
		return fmt.Errorf("write plan header: %w", err)
	}
	for i, c := range chunks {
		spec, err := tmpl.Render(modelName, c)
		if err != nil {
			return fmt.Errorf("render chunk %d: %w", i+1, err)
		}
		cmdline := strings.TrimSpace(spec.Script + " " + strings.Join(spec.Args, " "))
		if err := writef(w, "%d\t%s\t%s\t%s\n", i+1, c, spec.Name, cmdline); err != nil {
			return fmt.Errorf("write plan row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush plan: %w", err)
	}
	return nil
}

// parsePlanArgs accepts the ivt-submit positional layout:
// start_year end_year [start_month] [end_month] model chunk_size.
func parsePlanArgs(pos []string) (string, plan.Request, error) {
	req := plan.Request{StartMonth: 1, EndMonth: 12}

	var ints []*int
	var modelName string
	switch len(pos) {
	case 4:
		ints = []*int{&req.StartYear, &req.EndYear, nil, &req.ChunkSize}
	case 5:
		ints = []*int{&req.StartYear, &req.EndYear, &req.StartMonth, nil, &req.ChunkSize}
	case 6:
		ints = []*int{&req.StartYear, &req.EndYear, &req.StartMonth, &req.EndMonth, nil, &req.ChunkSize}
	default:
		return "", req, fmt.Errorf("plan expects 4 to 6 arguments, got %d", len(pos))
	}

	for i, dst := range ints {
		if dst == nil {
			modelName = pos[i]
			continue
		}
		n, err := strconv.Atoi(pos[i])
		if err != nil {
			return "", req, fmt.Errorf("argument %d must be an integer, got %q", i+1, pos[i])
		}
		*dst = n
	}
	if modelName == "" {
		return "", req, errors.New("model must not be empty")
	}
	return modelName, req, nil
}

type listChainsOptions struct {
	Model  string
	Status string
	Limit  int
	Offset int
}

func runListChains(cmdCtx *commandContext, args []string) error {
	opts, err := parseListChainsFlags(args)
	if err != nil {
		return err
	}

	listOpts := model.ChainRunListOptions{Model: opts.Model, Limit: opts.Limit, Offset: opts.Offset}
	if opts.Status != "" {
		var st model.ChainStatus
		if err := st.UnmarshalText([]byte(opts.Status)); err != nil {
			return err
		}
		listOpts.Status = &st
	}

	container, err := buildService(cmdCtx)
	if err != nil {
		return err
	}
	defer closeContainer(cmdCtx, container)

	runs, err := container.Service.List(cmdCtx.Ctx, listOpts)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return writeln(cmdCtx.Out, "no chains found")
	}

	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tMODEL\tBACKEND\tSTATUS\tRANGE\tCHUNK SIZE\tCREATED"); err != nil {
		return fmt.Errorf("write list header: %w", err)
	}
	for _, r := range runs {
		span := model.WorkChunk{StartYear: r.StartYear, EndYear: r.EndYear, StartMonth: r.StartMonth, EndMonth: r.EndMonth}
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Model, r.Backend, r.Status, span, r.ChunkSize, r.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("write chain %s: %w", r.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush chain list: %w", err)
	}
	return nil
}

func parseListChainsFlags(args []string) (listChainsOptions, error) {
	fs := flag.NewFlagSet("list-chains", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listChainsOptions{Limit: 20}
	fs.StringVar(&opts.Model, "model", "", "Only chains for this model")
	fs.StringVar(&opts.Status, "status", "", "Only chains in this status (submitting, submitted, failed)")
	fs.IntVar(&opts.Limit, "limit", opts.Limit, "Maximum number of chains to list")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of chains to skip")

	if err := fs.Parse(args); err != nil {
		return listChainsOptions{}, err
	}
	if opts.Limit <= 0 {
		return listChainsOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listChainsOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}

type showChainOptions struct {
	ID     string
	Status bool
}

func runShowChain(cmdCtx *commandContext, args []string) error {
	opts, err := parseShowChainFlags(args)
	if err != nil {
		return err
	}

	container, err := buildService(cmdCtx)
	if err != nil {
		return err
	}
	defer closeContainer(cmdCtx, container)

	var report *service.ChainReport
	if opts.Status {
		report, err = container.Service.Status(cmdCtx.Ctx, opts.ID)
	} else {
		report, err = container.Service.Get(cmdCtx.Ctx, opts.ID)
	}
	if err != nil {
		return err
	}
	return printChainReport(cmdCtx, report, opts.Status)
}

func parseShowChainFlags(args []string) (showChainOptions, error) {
	fs := flag.NewFlagSet("show-chain", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts showChainOptions
	fs.StringVar(&opts.ID, "id", "", "Chain run ID (required)")
	fs.BoolVar(&opts.Status, "status", false, "Query the batch queue for each job's state")

	if err := fs.Parse(args); err != nil {
		return showChainOptions{}, err
	}
	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" {
		return showChainOptions{}, errors.New("--id is required")
	}
	return opts, nil
}

func printChainReport(cmdCtx *commandContext, report *service.ChainReport, withState bool) error {
	run := report.Run
	span := model.WorkChunk{StartYear: run.StartYear, EndYear: run.EndYear, StartMonth: run.StartMonth, EndMonth: run.EndMonth}
	if err := writef(cmdCtx.Out, "Chain:   %s\nModel:   %s\nBackend: %s\nStatus:  %s\nRange:   %s (chunk size %d)\nCreated: %s\n",
		run.ID, run.Model, run.Backend, run.Status, span, run.ChunkSize, run.CreatedAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("write chain summary: %w", err)
	}
	if run.LastError != nil && *run.LastError != "" {
		if err := writef(cmdCtx.Out, "Error:   %s\n", *run.LastError); err != nil {
			return fmt.Errorf("write chain error: %w", err)
		}
	}
	if err := writeln(cmdCtx.Out, ""); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	header := "#\tMONTHS\tJOB ID\tDEPENDS ON\tSUBMITTED"
	if withState {
		header += "\tSTATE"
	}
	if err := writeln(w, header); err != nil {
		return fmt.Errorf("write jobs header: %w", err)
	}
	for _, js := range report.Jobs {
		dep := "-"
		if js.Job.DependsOn != nil {
			dep = *js.Job.DependsOn
		}
		row := fmt.Sprintf("%d\t%s\t%s\t%s\t%s", js.Position, js.Job.Chunk, js.Job.JobID, dep,
			js.Job.SubmittedAt.UTC().Format(time.RFC3339))
		if withState {
			state := string(js.State)
			if js.Err != "" {
				state += " (" + js.Err + ")"
			}
			row += "\t" + state
		}
		if err := writeln(w, row); err != nil {
			return fmt.Errorf("write job %s: %w", js.Job.JobID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush jobs: %w", err)
	}
	return nil
}

func buildService(cmdCtx *commandContext) (*bootstrap.ChainContainer, error) {
	cfg := cmdCtx.Config
	container, err := bootstrap.BuildChainService(cmdCtx.Ctx, bootstrap.ChainDeps{
		Config: &cfg,
		Logger: cmdCtx.Logger,
		Runner: cmdCtx.Runner,
	})
	if err != nil {
		return nil, fmt.Errorf("build chain service: %w", err)
	}
	return container, nil
}

func closeContainer(cmdCtx *commandContext, c *bootstrap.ChainContainer) {
	if err := c.Close(); err != nil {
		cmdCtx.Logger.Warn("close resources failed", "error", err)
	}
}
