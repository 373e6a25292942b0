package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/policy"
)

// PolicyTable is the result of the policies command.
type PolicyTable []ir.PolicySpec

func (t PolicyTable) renderText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tTYPES\tGROUPING\tSTATUS RANK\tGOVERNED")
	for _, s := range t {
		rank := "-"
		if s.Ranked() {
			rank = strings.Join(s.StatusRank, "<")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
			s.Name, strings.Join(s.Types, ","), s.Grouping, rank, s.Governance != nil)
	}
	tw.Flush()
}

// NewPoliciesCommand creates the policies command.
func NewPoliciesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the effective domain policies",
		Long: `List the domain policy tables in effect: the built-in set with any
overrides from --policies applied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			reg, err := policy.Load(rootOpts.Policies)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load policies", err)
			}
			return out.Success(PolicyTable(reg.Specs()))
		},
	}
}
