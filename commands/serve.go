// commands/serve.go
package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gewnthar/surveyetl/handlers"
	"github.com/spf13/cobra"
)

var servePort string

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (default server.port)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the pipeline tasks over the HTTP admin API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// Publishing is optional for the server; without a bucket the
		// publish task reports that no publisher is configured.
		if a.cfg.Publish.Bucket != "" {
			if err := a.withPublisher(ctx); err != nil {
				return err
			}
		}

		mux := http.NewServeMux()
		handlers.NewHandler(a.pipeline, a.ping()).Routes(mux)

		port := a.cfg.Server.Port
		if servePort != "" {
			port = servePort
		}
		server := &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		slog.Info("server starting", "addr", "http://localhost"+server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}
