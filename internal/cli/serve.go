package cli

import (
	"github.com/spf13/cobra"

	"tabledesk/internal/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig(cmd.Context())
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			srv, err := server.NewServer(cmd.Context(), cfg, getLogger(cmd.Context()))
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().Int("port", 0, "HTTP port")
	cmd.Flags().String("history-dsn", "", "connection string of the change history store (empty disables it)")
	cmd.Flags().String("jwt-secret", "", "secret bearer tokens are signed with")
	cmd.Flags().Duration("session-ttl", 0, "lifetime of an idle edit session")
	return cmd
}
