package main

import (
	"github.com/Cyclone1070/buildforme/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the template and chat endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			p, err := a.deps.ProviderFactory(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			a.log.Info("listening", zap.String("addr", a.cfg.Server.Addr), zap.String("provider", p.Name()))
			return server.New(a.cfg, p, catalog, a.log).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
