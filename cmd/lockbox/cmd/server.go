package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/api"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the vault over a local HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		v, closeRepo, err := openVault(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()

		bc, err := newBreachClient(cfg.Breach)
		if err != nil {
			return err
		}

		a := api.New(v,
			api.WithIdleTimeout(cfg.Server.IdleTimeout),
			api.WithBreachClient(bc),
		)
		a.StartJanitor(ctx, 30*time.Second)
		defer a.Shutdown()

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		useTLS := cfg.Server.TLSCert != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		slog.Info("listening",
			slog.String("addr", cfg.Server.Addr),
			slog.Bool("tls", useTLS),
			slog.String("backend", cfg.Storage.Backend),
		)

		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().String("addr", "", "Address to listen on (default 127.0.0.1:7878)")
	serverCmd.Flags().Duration("idle-timeout", 0, "Lock the session after this much inactivity")
	serverCmd.Flags().String("tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().String("tls-key", "", "Path to TLS key file")
	serverCmd.Flags().Duration("breach-delay", 0, "Spacing between breach lookups")
}
