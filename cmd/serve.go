package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/illarion/lockbox/internal/config"
	"github.com/illarion/lockbox/internal/keyring"
	"github.com/illarion/lockbox/internal/web"
)

// Serve runs the web form until ctx is cancelled
func Serve(ctx context.Context, envFile, addr string) {
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.ListenAddr = addr
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	secret, src, saveErr := keyring.ResolveSecret(keyring.OS(), cfg.SecretKey)
	if secret == "" {
		logger.Error("session secret error", "err", saveErr)
		os.Exit(1)
	}
	if saveErr != nil {
		logger.Warn("session secret not persisted; flash cookies reset on restart", "err", saveErr)
	}
	logger.Info("session secret loaded", "source", string(src))

	handler, err := web.NewHandler(web.Options{
		Secret:         []byte(secret),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})
	if err != nil {
		logger.Error("handler error", "err", err)
		os.Exit(1)
	}

	if err := web.ListenAndServe(ctx, cfg.ListenAddr, handler, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
