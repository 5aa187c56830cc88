package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/cozoq/internal/journal"
	"github.com/roach88/cozoq/internal/plan"
	"github.com/roach88/cozoq/internal/session"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal  string
	Record   string
	FailFast bool
}

// ReplayStep is the outcome of one replayed step.
type ReplayStep struct {
	Plan    string      `json:"plan"`
	Index   int         `json:"index"`
	Name    string      `json:"name,omitempty"`
	Op      plan.Op     `json:"op"`
	Status  string      `json:"status"` // "ok" or "error"
	Result  *ResultView `json:"result,omitempty"`
	Error   *CLIError   `json:"error,omitempty"`
	Mutates bool        `json:"mutates"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Steps  []ReplayStep `json:"steps"`
	Failed int          `json:"failed"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <plan-file|plan-dir>",
		Short: "Run plans against a journal of recorded engine calls",
		Long: `Run every step of a plan through a session whose engine answers from a
journal. Each script is matched to the most recent recorded call with the
same fingerprint; steps the journal never saw fail as session errors.

Exit codes:
  0 - Every step succeeded
  1 - At least one step failed
  2 - Command error (journal not found, invalid plan, etc.)

Examples:
  cozoq replay --journal ./cozoq-journal.db plans/seed.yaml
  cozoq replay --journal ./cozoq-journal.db plans/ --fail-fast --format json
  cozoq replay --journal ./full.db --record ./seed-only.db plans/seed.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal database (defaults to journal.path from config)")
	cmd.Flags().StringVar(&opts.Record, "record", "", "append every replayed call to this journal (created if missing)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first failing step")

	return cmd
}

func runReplay(opts *ReplayOptions, planPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	j, err := openJournal(opts.RootOptions, opts.Journal)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return reportedExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	plans, err := loadPlans(planPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load plans", err)
	}
	var compiled [][]plan.Compiled
	for _, p := range plans {
		steps, err := p.Compile()
		if err != nil {
			return formatter.Fail(ExitCommandError, "failed to compile plan", err)
		}
		compiled = append(compiled, steps)
	}

	replayer := journal.NewReplayer(j)
	if err := session.Init(replayer); err != nil {
		return formatter.Fail(ExitCommandError, "failed to initialise replay engine", err)
	}
	kind, err := session.ParseKind(opts.Config.Engine.Kind)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid engine config", err)
	}
	sessOpts := session.Options{
		Kind:          kind,
		Path:          opts.Config.Engine.Path,
		EngineOptions: opts.Config.Engine.Options,
		Logger:        logger,
	}
	if opts.Record != "" {
		if sameFile(opts.Record, journalPath(opts.RootOptions, opts.Journal)) {
			return formatter.Fail(ExitCommandError, "invalid flags", fmt.Errorf("--record must name a different journal than --journal"))
		}
		rec, err := journal.Open(opts.Record)
		if err != nil {
			return formatter.Fail(ExitCommandError, "failed to open record journal", err)
		}
		defer rec.Close()
		sessOpts.WrapEngine = journal.Record(rec, logger)
	}
	s, err := session.Open(ctx, replayer, sessOpts)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open session", err)
	}
	defer s.Close()

	result := replayPlans(ctx, s, plans, compiled, opts.FailFast)
	logger.Info("replay finished", "steps", len(result.Steps), "failed", result.Failed)

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if err := writeReplayText(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Each failure is already in the step output.
		return reportedExitError(ExitFailure, fmt.Sprintf("%d step(s) failed", result.Failed), nil)
	}
	return nil
}

// journalPath resolves the journal location. The flag value wins over config.
func journalPath(opts *RootOptions, flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return opts.Config.Journal.Path
}

// openJournal opens an existing journal.
func openJournal(opts *RootOptions, flagPath string) (*journal.Journal, error) {
	path := journalPath(opts, flagPath)
	if path == "" {
		return nil, fmt.Errorf("no journal path: pass --journal or set journal.path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal not found: %s", path)
	}
	return journal.Open(path)
}

func sameFile(a, b string) bool {
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return os.SameFile(ai, bi)
}

func replayPlans(ctx context.Context, s *session.Session, plans []*plan.Plan, compiled [][]plan.Compiled, failFast bool) ReplayResult {
	result := ReplayResult{Steps: []ReplayStep{}}
	for i, p := range plans {
		for _, c := range compiled[i] {
			step := ReplayStep{
				Plan:    p.Name,
				Index:   c.Index + 1,
				Name:    c.Step.Name,
				Op:      c.Step.Op,
				Mutates: c.Request.Mutates,
			}
			res, err := s.Execute(ctx, c.Request)
			if err != nil {
				step.Status = "error"
				step.Error = &CLIError{Code: ErrorCode(err), Message: err.Error()}
				result.Failed++
			} else {
				view := NewResultView(res)
				step.Status = "ok"
				step.Result = &view
			}
			result.Steps = append(result.Steps, step)
			if err != nil && failFast {
				return result
			}
		}
	}
	return result
}

func writeReplayText(w io.Writer, result ReplayResult) error {
	for _, step := range result.Steps {
		label := string(step.Op)
		if step.Name != "" {
			label = step.Name
		}
		fmt.Fprintf(w, "-- %s step %d: %s\n", step.Plan, step.Index, label)
		if step.Error != nil {
			fmt.Fprintf(w, "Error [%s]: %s\n", step.Error.Code, step.Error.Message)
			continue
		}
		if err := WriteTable(w, *step.Result); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "\n%d step(s), %d failed\n", len(result.Steps), result.Failed)
	return nil
}
