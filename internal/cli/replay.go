package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
	"github.com/roach88/strata/internal/service"
)

// ReplayDomainResult holds the replay result for a single domain.
type ReplayDomainResult struct {
	Domain        string `json:"domain"`
	Entities      int    `json:"entities"`
	Members       int    `json:"members"`
	Hash          string `json:"hash"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Records          int64                `json:"records"`
	Domains          []ReplayDomainResult `json:"domains"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

func (r ReplayResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Replayed %d record(s) across %d domain(s)\n\n", r.Records, len(r.Domains))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tENTITIES\tRECORDS\tHASH\tDETERMINISTIC")
	for _, d := range r.Domains {
		mark := "✓"
		if !d.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", d.Domain, d.Entities, d.Members, short(d.Hash), mark)
	}
	tw.Flush()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Project the log twice and verify determinism",
		Long: `Project every domain of the record log with two independent engines
and compare the resulting views.

Exit codes:
  0 - Every domain projected identically
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  strata replay --db ./strata.db
  strata replay --db ./strata.db --domain market --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, domain, cmd)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "replay a single domain only")
	return cmd
}

func runReplay(opts *RootOptions, domain string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	first, st, err := opts.openService()
	if err != nil {
		return err
	}
	defer st.Close()
	second := service.New(st, first.Policies(), service.WithAuthority(opts.Authority))

	domains := first.Policies().Names()
	if domain != "" {
		domains = []string{domain}
	}

	head, err := st.Head(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log head", err)
	}

	result := ReplayResult{
		Records:          head,
		Domains:          make([]ReplayDomainResult, 0, len(domains)),
		AllDeterministic: true,
	}
	for _, d := range domains {
		dr, err := replayDomain(ctx, first, second, d)
		if err != nil {
			return formatter.Fail(fmt.Sprintf("failed to replay %s", d), err)
		}
		formatter.VerboseLog("%s: %d entities, hash %s", d, dr.Entities, dr.Hash)
		result.Domains = append(result.Domains, dr)
		if !dr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay produced differing views")
	}
	return nil
}

// replayDomain lists domain through both services and compares the hashes
// of the projected keys and tips.
func replayDomain(ctx context.Context, a, b *service.Service, domain string) (ReplayDomainResult, error) {
	res := ReplayDomainResult{Domain: domain}

	ha, entities, err := viewHash(ctx, a, domain)
	if err != nil {
		return res, err
	}
	hb, _, err := viewHash(ctx, b, domain)
	if err != nil {
		return res, err
	}

	res.Entities = len(entities)
	for _, e := range entities {
		res.Members += len(e.Members)
	}
	res.Hash = ha
	res.Deterministic = ha == hb
	return res, nil
}

func viewHash(ctx context.Context, svc *service.Service, domain string) (string, []projection.Entity, error) {
	entities, err := svc.ListEntities(ctx, domain, projection.Filter{Order: projection.OrderOldest})
	if err != nil {
		return "", nil, err
	}
	view := make(ir.Array, len(entities))
	for i, e := range entities {
		view[i] = ir.Array{ir.String(projection.DisplayKey(e.Key)), ir.String(e.Tip.ID)}
	}
	hash, err := ir.SnapshotHash(view)
	if err != nil {
		return "", nil, err
	}
	return hash, entities, nil
}
