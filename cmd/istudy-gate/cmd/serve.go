package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ogabek/istudy-gate/authstate"
	"github.com/ogabek/istudy-gate/config"
	"github.com/ogabek/istudy-gate/credstore"
	"github.com/ogabek/istudy-gate/gateway"
	"github.com/ogabek/istudy-gate/session"
)

var (
	listenAddr string
	dataDir    string
	apiBaseURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if apiBaseURL != "" {
			cfg.APIBaseURL = apiBaseURL
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		store, err := credstore.NewBoltFromFile(filepath.Join(cfg.DataDir, "session.db"), nil)
		if err != nil {
			return fmt.Errorf("opening credential store: %w", err)
		}
		defer store.Close()

		upstream, err := url.Parse(cfg.APIBaseURL)
		if err != nil {
			return fmt.Errorf("parsing api base url: %w", err)
		}

		machine := authstate.NewMachine(logger)

		transport := &gateway.Transport{
			Tokens: machine,
			Store:  store,
			OnSessionExpired: func() {
				machine.Dispatch(authstate.Logout{})
			},
			Logger: logger,
		}

		plain := &http.Client{Timeout: 15 * time.Second}
		authed := &http.Client{Transport: transport, Timeout: 15 * time.Second}
		client := session.NewClient(cfg.APIBaseURL, plain, authed)

		controller := session.NewController(client, store, machine, logger,
			session.WithTTL(cfg.SessionTTL))
		controller.Initialize(cmd.Context())

		watchdog := session.NewWatchdog(controller, store, machine, logger,
			session.WithIntervals(cfg.SessionTTL, cfg.IdleTTL, cfg.CheckInterval))
		watchdog.Start()
		defer watchdog.Stop()

		gw := gateway.New(machine, controller,
			gateway.WithLogger(logger),
			gateway.WithActivity(watchdog),
			gateway.WithUpstream(upstream, transport))

		r := chi.NewRouter()
		r.Use(chimw.Logger)
		r.Use(chimw.Recoverer)
		r.Mount("/", gw.Router())

		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("gateway started",
			slog.String("addr", cfg.ListenAddr),
			slog.String("upstream", cfg.APIBaseURL),
			slog.String("version", Version))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", slog.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent data (overrides config)")
	serveCmd.Flags().StringVar(&apiBaseURL, "api-base-url", "", "Remote iStudy API base URL (overrides config)")
}
