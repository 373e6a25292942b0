package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/policy"
	"github.com/roach88/strata/internal/service"
	"github.com/roach88/strata/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Config    string
	Database  string
	Policies  string
	Authority string
	Listen    string // From the config file; serve's --listen overrides it
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the strata CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "strata",
		Short: "strata - log projection engine",
		Long: `Project an append-only record log into the current view of every entity:
edit chains, deletions, concurrent-edit tie-breaks, status ranks, dedupe,
elections and proposal thresholds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(opts.Verbose)
			return opts.applyConfig(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite record log")
	cmd.PersistentFlags().StringVar(&opts.Policies, "policies", "", "directory of CUE policy overrides")
	cmd.PersistentFlags().StringVar(&opts.Authority, "authority", "", "dictator identity and sweep author")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewElectCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewPoliciesCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// applyConfig fills options from the config file. Flags set on the command
// line take precedence.
func (o *RootOptions) applyConfig(cmd *cobra.Command) error {
	if o.Config == "" {
		return nil
	}
	cfg, err := LoadConfig(o.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	set := func(flag string, dst *string, v string) {
		if v != "" && !cmd.Flags().Changed(flag) {
			*dst = v
		}
	}
	set("db", &o.Database, cfg.DB)
	set("policies", &o.Policies, cfg.Policies)
	set("authority", &o.Authority, cfg.Authority)
	o.Listen = cfg.Listen

	slog.Debug("config loaded", "path", o.Config)
	return nil
}

func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// openService opens the record log and policy registry named by o.
// The caller closes the returned store.
func (o *RootOptions) openService() (*service.Service, *store.Store, error) {
	if o.Database == "" {
		return nil, nil, NewExitError(ExitCommandError, "no database: set --db or db in the config file")
	}

	reg, err := policy.Load(o.Policies)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load policies", err)
	}

	st, err := store.Open(o.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var svcOpts []service.Option
	if o.Authority != "" {
		svcOpts = append(svcOpts, service.WithAuthority(o.Authority))
	}
	return service.New(st, reg, svcOpts...), st, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
