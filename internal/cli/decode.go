package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/result"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <response-file|->",
		Short: "Decode an engine response envelope",
		Long: `Decode a JSON response envelope and print it as a table, or print the
engine's error when the envelope reports failure. Use "-" to read stdin.

Exit codes:
  0 - Envelope decoded successfully
  1 - Envelope reports a query failure or is malformed
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	return cmd
}

func runDecode(opts *DecodeOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return reportedExitError(ExitCommandError, "failed to read response", err)
	}

	res, err := result.Decode(raw)
	if err != nil {
		opts.logger().Debug("envelope rejected", "source", path, "error", err)
		if dberr.IsQueryError(err) {
			return formatter.Fail(ExitFailure, "response rejected", err)
		}
		return formatter.Fail(ExitCommandError, "failed to decode response", err)
	}

	if opts.Format == "json" {
		return formatter.Success(NewResultView(res))
	}
	return WriteTable(cmd.OutOrStdout(), NewResultView(res))
}
