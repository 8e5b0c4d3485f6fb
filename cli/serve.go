package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ankit-chaubey/id3-surgery/core/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repair API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			if !a.cfg.LogDevelopment {
				gin.SetMode(gin.ReleaseMode)
			}
			svc := a.codec()
			router := server.New(server.Options{
				Repairer:       a.repairer(true),
				Codec:          svc,
				Log:            a.log.Named("http"),
				AllowOrigins:   a.cfg.AllowOrigins,
				MaxUploadBytes: a.cfg.MaxUploadBytes,
			})
			srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			a.log.Info("listening", zap.String("addr", addr))

			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.log.Info("stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "listen", "", "listen address (default $SURGERY_LISTEN_ADDR)")
	return cmd
}
