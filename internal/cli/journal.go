package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cozoq/internal/journal"
	"github.com/roach88/cozoq/internal/result"
)

// JournalOptions holds flags for the journal commands.
type JournalOptions struct {
	*RootOptions
	Journal string
	Limit   int
}

// JournalEntryView is the listing shape of a journal entry.
type JournalEntryView struct {
	Seq         int64     `json:"seq"`
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	Immutable   bool      `json:"immutable"`
	Status      string    `json:"status"` // "ok", "failed" or "transport_error"
	Fingerprint string    `json:"fingerprint"`
	Script      string    `json:"script"`
	Params      string    `json:"params"`
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded engine calls",
	}
	cmd.AddCommand(newJournalListCommand(rootOpts))
	return cmd
}

func newJournalListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded engine calls, oldest first",
		Long: `List the entries of a journal in sequence order. With --limit, only the
most recent entries are shown.

Examples:
  cozoq journal list --journal ./cozoq-journal.db
  cozoq journal list --journal ./cozoq-journal.db --limit 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal database (defaults to journal.path from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent N entries (0 = all)")

	return cmd
}

func runJournalList(opts *JournalOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Limit < 0 {
		_ = formatter.Error(ErrCodeUsage, "--limit must be non-negative", nil)
		return reportedExitError(ExitCommandError, "--limit must be non-negative", nil)
	}

	j, err := openJournal(opts.RootOptions, opts.Journal)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return reportedExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	entries, err := j.List(cmd.Context(), opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to list journal", err)
	}

	views := make([]JournalEntryView, len(entries))
	for i, e := range entries {
		views[i] = newJournalEntryView(e)
	}

	if opts.Format == "json" {
		return formatter.Success(views)
	}
	return writeJournalText(cmd.OutOrStdout(), views)
}

func newJournalEntryView(e journal.Entry) JournalEntryView {
	return JournalEntryView{
		Seq:         e.Seq,
		ID:          e.ID,
		SessionID:   e.SessionID,
		RecordedAt:  e.RecordedAt,
		Immutable:   e.Immutable,
		Status:      entryStatus(e),
		Fingerprint: e.Fingerprint,
		Script:      e.Script,
		Params:      e.Params,
	}
}

func entryStatus(e journal.Entry) string {
	if e.Err != "" {
		return "transport_error"
	}
	if err := result.DecodeStatus([]byte(e.Response)); err != nil {
		return "failed"
	}
	return "ok"
}

func writeJournalText(w io.Writer, views []JournalEntryView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No entries recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRECORDED\tMODE\tSTATUS\tFINGERPRINT\tSCRIPT")
	for _, v := range views {
		mode := "write"
		if v.Immutable {
			mode = "read"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			v.Seq,
			v.RecordedAt.Format(time.RFC3339),
			mode,
			v.Status,
			v.Fingerprint[:min(12, len(v.Fingerprint))],
			firstLine(v.Script),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d entr%s\n", len(views), plural(len(views), "y", "ies"))
	return err
}

func firstLine(s string) string {
	line, _, more := strings.Cut(s, "\n")
	if more {
		return line + " ..."
	}
	return line
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
