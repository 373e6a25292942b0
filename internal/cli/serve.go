package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/httpapi"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the projection API over HTTP",
		Long: `Serve entity listings, edits, elections and sweeps as a JSON API.
Mutations take the requester identity from the X-Author header.

Examples:
  strata serve --db ./strata.db --listen :8080
  strata serve --config ./strata.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("listen") && rootOpts.Listen != "" {
				listen = rootOpts.Listen
			}

			svc, st, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, httpapi.NewServer(svc, listen))
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8080", "address to listen on")
	return cmd
}

// serve runs srv until ctx is done.
func serve(ctx context.Context, srv *httpapi.Server) error {
	if err := srv.Start(); err != nil {
		return WrapExitError(ExitCommandError, "failed to start server", err)
	}
	<-ctx.Done()
	slog.Info("shutting down")
	if err := srv.Stop(); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	return nil
}
