package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sealroom/internal/app"
	"sealroom/internal/config"
	"sealroom/internal/directory"
	"sealroom/internal/platform/ratelimiter"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "directory",
		Short:        "Serve the sealroom key directory",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				if err := config.ReadFile(v, cfgFile); err != nil {
					return err
				}
			}
			cfg, err := config.LoadServer(v)
			if err != nil {
				return err
			}
			log := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return run(cmd.Context(), cfg, log, nil)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "YAML config file")
	f.String("listen", "", "listen address")
	f.String("store", "", "memory, redis or postgres")
	f.String("log-level", "", "debug, info, warn or error")
	_ = v.BindPFlag("listen", f.Lookup("listen"))
	_ = v.BindPFlag("store", f.Lookup("store"))
	_ = v.BindPFlag("log_level", f.Lookup("log-level"))
	return cmd
}

// run serves until ctx is done. ready, if set, receives the bound address.
func run(ctx context.Context, cfg config.Server, log *slog.Logger, ready func(addr string)) error {
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("close store", "err", err)
		}
	}()

	var limiter *ratelimiter.MapLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = ratelimiter.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
	}
	handler := directory.NewServer(store, directory.ServerOptions{
		Logger:   log,
		Limiter:  limiter,
		Registry: app.NewRegistry(),
	}).Handler()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info("directory listening", "addr", ln.Addr().String(), "store", cfg.Store)
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info("directory stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
