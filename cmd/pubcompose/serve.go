package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/pubcompose"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the compose server",
		Long: `Run the compose server until interrupted.

The session secret is required; set it in the config file (session.secret)
or through PUBCOMPOSE_SESSION_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := pubcompose.New(siteConfig(), pubcompose.WithLogger(logger))
			defer app.Close()
			return app.Start(cmd.Context())
		},
	}
	cmd.Flags().String("addr", ":3000", "listen address")
	cmd.Flags().String("api", "http://localhost:5000", "base URL of the generation and posts APIs")
	_ = viper.BindPFlag("site.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("api.url", cmd.Flags().Lookup("api"))
	return cmd
}
