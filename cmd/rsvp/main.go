package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/directory"
	"wedding-rsvp/internal/handler"
	"wedding-rsvp/internal/logger"
	"wedding-rsvp/internal/sheet"
	"wedding-rsvp/internal/whatsapp"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	root := &cobra.Command{
		Use:           "rsvp",
		Short:         "Wedding RSVP guest directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.Store, "store", cfg.Store, "workbook store: sqlite, file or memory")
	root.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the workbook")

	root.AddCommand(
		newServeCmd(cfg, log),
		newProvisionCmd(cfg, log),
		newGuestsCmd(cfg, log),
		newImportCmd(cfg, log),
	)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newServeCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the RSVP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var notifier directory.Notifier
	if len(cfg.NotifyPhones) > 0 {
		wa, err := whatsapp.NewService(ctx, &whatsapp.Config{DataDir: cfg.WhatsAppDataDir, Phones: cfg.NotifyPhones}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize WhatsApp: %w", err)
		}
		log.Info().Msg("Connecting to WhatsApp...")
		if err := wa.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to WhatsApp: %w", err)
		}
		defer wa.Disconnect()
		notifier = wa
	}

	svc, workbook, err := openDirectory(cfg, log, notifier)
	if err != nil {
		return err
	}
	defer workbook.Close()
	// let host notifications finish before the workbook and WhatsApp close
	defer svc.Wait()

	if err := svc.Provision(ctx); err != nil {
		if errors.Is(err, sheet.ErrTableNotFound) {
			return fmt.Errorf("%w (run `rsvp import` first)", err)
		}
		return err
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewRSVPHandler(svc, log, &handler.Config{AllowedOrigin: cfg.AllowedOrigin})
	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("RSVP server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newProvisionCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the gift message sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, workbook, err := openDirectory(cfg, log, nil)
			if err != nil {
				return err
			}
			defer workbook.Close()
			return svc.Provision(cmd.Context())
		},
	}
}

func openDirectory(cfg *config.Config, log zerolog.Logger, notifier directory.Notifier) (*directory.Service, sheet.Workbook, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	workbook, err := sheet.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	svc := directory.New(workbook, directory.Options{
		GuestSheet:    cfg.GuestSheet,
		GiftSheet:     cfg.GiftSheet,
		GiftRecipient: cfg.GiftRecipient,
		Location:      loc,
		Logger:        log,
		Notifier:      notifier,
	})
	return svc, workbook, nil
}
