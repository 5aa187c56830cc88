package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cozoq/internal/plan"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
}

// RenderedStep is one compiled step in render output.
type RenderedStep struct {
	Index   int             `json:"index"`
	Name    string          `json:"name,omitempty"`
	Op      plan.Op         `json:"op"`
	Script  string          `json:"script"`
	Params  json.RawMessage `json:"params"`
	Mutates bool            `json:"mutates"`
}

// RenderedPlan is a compiled plan in render output.
type RenderedPlan struct {
	Name   string         `json:"name"`
	Source string         `json:"source"`
	Steps  []RenderedStep `json:"steps"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <plan-file|plan-dir>",
		Short: "Compile plans and print their scripts",
		Long: `Compile a plan file, or every plan file in a directory, and print the
assembled scripts with their parameters. Nothing is sent to an engine.

Examples:
  cozoq render plans/seed.yaml
  cozoq render plans/ --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	plans, err := loadPlans(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load plans", err)
	}
	formatter.VerboseLog("Loaded %d plan(s) from %s", len(plans), path)

	rendered := make([]RenderedPlan, 0, len(plans))
	for _, p := range plans {
		rp, err := renderPlan(p)
		if err != nil {
			return formatter.Fail(ExitCommandError, "failed to compile plan", err)
		}
		rendered = append(rendered, rp)
	}

	if opts.Format == "json" {
		return formatter.Success(rendered)
	}
	for _, rp := range rendered {
		writeRenderedText(cmd.OutOrStdout(), rp)
	}
	return nil
}

// loadPlans loads a single plan file or every plan in a directory.
func loadPlans(path string) ([]*plan.Plan, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &plan.LoadError{Path: path, Message: "plan path not found", Err: err}
	}
	if info.IsDir() {
		plans, err := plan.LoadDir(path)
		if err != nil {
			return nil, err
		}
		if len(plans) == 0 {
			return nil, &plan.LoadError{Path: path, Message: fmt.Sprintf("no plan files found (want one of %v)", plan.Extensions)}
		}
		return plans, nil
	}
	p, err := plan.Load(path)
	if err != nil {
		return nil, err
	}
	return []*plan.Plan{p}, nil
}

func renderPlan(p *plan.Plan) (RenderedPlan, error) {
	compiled, err := p.Compile()
	if err != nil {
		return RenderedPlan{}, err
	}
	rp := RenderedPlan{Name: p.Name, Source: p.Source, Steps: make([]RenderedStep, 0, len(compiled))}
	for _, c := range compiled {
		params, err := c.Request.ParamsJSON()
		if err != nil {
			return RenderedPlan{}, fmt.Errorf("plan %s: step %d: %w", p.Name, c.Index+1, err)
		}
		rp.Steps = append(rp.Steps, RenderedStep{
			Index:   c.Index + 1,
			Name:    c.Step.Name,
			Op:      c.Step.Op,
			Script:  c.Request.Script,
			Params:  json.RawMessage(params),
			Mutates: c.Request.Mutates,
		})
	}
	return rp, nil
}

func writeRenderedText(w io.Writer, rp RenderedPlan) {
	fmt.Fprintf(w, "== %s (%s)\n", rp.Name, rp.Source)
	for _, s := range rp.Steps {
		mode := "read"
		if s.Mutates {
			mode = "write"
		}
		label := string(s.Op)
		if s.Name != "" {
			label = s.Name
		}
		fmt.Fprintf(w, "-- step %d: %s [%s]\n", s.Index, label, mode)
		fmt.Fprintln(w, s.Script)
		fmt.Fprintf(w, "params: %s\n", s.Params)
	}
}
