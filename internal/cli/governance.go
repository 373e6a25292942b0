package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/election"
)

// ElectionReport is the text form of an election result.
type ElectionReport struct {
	election.Result
}

func (r ElectionReport) renderText(w io.Writer) {
	fmt.Fprintf(w, "Method:     %s\n", r.Method)
	fmt.Fprintf(w, "Outcome:    %s\n", r.Outcome)
	fmt.Fprintf(w, "Electorate: %d (required %d)\n", r.Electorate, r.Required)
	if r.Winner != nil {
		fmt.Fprintf(w, "Winner:     %s by %s\n", r.Winner.ID, r.Winner.Author)
	}
	if len(r.Standings) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CANDIDATE\tAUTHOR\tVOTES\tREPUTATION")
	for _, s := range r.Standings {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", short(s.ID), s.Author, s.Votes, s.Reputation)
	}
	tw.Flush()
}

// SweepReport lists the proposals resolved by a sweep.
type SweepReport []election.Resolution

func (r SweepReport) renderText(w io.Writer) {
	if len(r) == 0 {
		fmt.Fprintln(w, "No proposals due.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPOSAL\tFROM\tTO\tYES\tNO\tREQUIRED\tREASON")
	for _, res := range r {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			short(res.Proposal.ID), res.Proposal.State, res.To,
			res.Tally.Yes, res.Tally.No, res.Required, res.Reason)
	}
	tw.Flush()
}

// NewElectCommand creates the elect command.
func NewElectCommand(rootOpts *RootOptions) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "elect <domain> <key>",
		Short: "Evaluate the election held under a key",
		Long: `Evaluate the election whose candidatures are grouped under key in a
governed domain. Votes are read from the domain's vote domain.

Examples:
  strata elect candidatures moderator --method democracy
  strata elect candidatures moderator --method karmatocracy --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			m, err := election.ParseMethod(method)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --method", err)
			}
			svc, st, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := svc.Election(cmd.Context(), args[0], args[1], m)
			if err != nil {
				return out.Fail("election failed", err)
			}
			return out.Success(ElectionReport{res})
		},
	}

	cmd.Flags().StringVar(&method, "method", string(election.MethodDemocracy), "governance method")
	return cmd
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var now int64

	cmd := &cobra.Command{
		Use:   "sweep <domain>",
		Short: "Resolve proposals past their deadline",
		Long: `Resolve every pending proposal of a governed domain whose deadline has
passed, appending one state transition per proposal.

Sweeping twice at the same instant appends nothing the second time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			if !cmd.Flags().Changed("now") {
				now = time.Now().UnixMilli()
			}
			svc, st, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := svc.Sweep(cmd.Context(), args[0], now)
			if err != nil {
				return out.Fail("sweep failed", err)
			}
			out.VerboseLog("swept %s at %d: %d resolution(s)", args[0], now, len(res))
			if res == nil {
				res = []election.Resolution{}
			}
			return out.Success(SweepReport(res))
		},
	}

	cmd.Flags().Int64Var(&now, "now", 0, "sweep instant in Unix ms (default: current time)")
	return cmd
}
