package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xsslab/xsslab/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API for the fuzzer, scanner and CSP tools",
		Long: `Start an HTTP server exposing:

  GET|POST /api/fuzz   payload mutations
  POST     /api/scan   DOM sink/source scan of a code snippet
  POST     /api/csp    policy analysis and payload test
  GET      /healthz    liveness

The server stops cleanly on SIGINT or SIGTERM.

Examples:
  xsslab serve
  xsslab serve --addr 127.0.0.1:9000
  curl 'localhost:8080/api/fuzz?payload=<script>alert(1)</script>&strategies=htmlEntities&limit=5'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr := a.v.GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			if origin := a.v.GetString("cors-origin"); origin != "" {
				a.cfg.Server.CORSOrigin = origin
			}
			return api.NewServer(a.cfg, a.log).Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	cmd.Flags().String("cors-origin", "", "value of Access-Control-Allow-Origin")
	return cmd
}
