package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tidytabs/internal/apihandlers"
)

var (
	serveHost string
	servePort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the TidyTabs HTTP API for the browser extension",
	Long: `Starts an HTTP server exposing /categorize_local, /categorize_local/confidence,
/categorize and /generate_tabs, plus /usage for cost reporting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config

		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		gin.SetMode(gin.ReleaseMode)
		router := apihandlers.NewRouter(appInstance, apihandlers.RouterOptions{
			RateLimit:      cfg.Server.RateLimit,
			Burst:          cfg.Server.Burst,
			RequestTimeout: cfg.Server.RequestTimeout,
		})

		// The extension calls from a moz-extension:// or chrome-extension:// origin.
		corsHandler := cors.New(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{apihandlers.RequestIDHeader, apihandlers.FallbackHeader},
		})

		srv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           corsHandler.Handler(router),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Starting TidyTabs API server on http://%s", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to run API server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutting down TidyTabs API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info("TidyTabs API server stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Address to listen on (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "Port to listen on (overrides server.port)")
}
