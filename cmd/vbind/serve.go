package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vbind/internal/config"
	"github.com/vango-dev/vbind/internal/errors"
	"github.com/vango-dev/vbind/pkg/live"
)

type serveOptions struct {
	configPath string
	addr       string
	items      string
	logLevel   string
	strict     bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live host",
		Long: `Run the live host.

Configuration is read from --config, or from vbind.json in the working
directory when it exists. Flags override file values.

Examples:
  vbind serve
  vbind serve --config vbind.json
  vbind serve --addr :9000 --items items.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadServeConfig(cmd, opts)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return errors.New("VB502").Wrap(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vbind listening on http://%s\n", ln.Addr())
			return runServe(ctx, cfg, ln)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to vbind.json")
	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&opts.items, "items", "", "JSON array loaded as the initial list")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Panic on writes to disposed signals")

	return cmd
}

// loadServeConfig resolves the config file and applies flag overrides.
func loadServeConfig(cmd *cobra.Command, opts serveOptions) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load(".")
		var e *errors.Error
		if stderrors.As(err, &e) && e.Code == "VB401" {
			cfg, err = config.Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.items != "" {
		// Flag paths are relative to the working directory.
		abs, err := filepath.Abs(opts.items)
		if err != nil {
			return nil, errors.New("VB501").Wrap(err)
		}
		cfg.ItemsFile = abs
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if cmd.Flags().Changed("strict") {
		cfg.Strict = opts.strict
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe serves the live host on ln until ctx is done, then shuts down
// within the configured timeout.
func runServe(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	logger := cfg.Logger(os.Stderr)

	items, err := cfg.LoadItems()
	if err != nil {
		ln.Close()
		return err
	}

	host := live.NewHost(cfg, live.WithLogger(logger), live.WithItems(items))
	defer host.Close()

	srv := &http.Server{
		Handler:           host.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("live host started", "addr", ln.Addr().String(), "items", len(items))

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.New("VB502").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown())
	defer cancel()

	// Shutdown does not wait for hijacked connections.
	host.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New("VB502").Wrap(err)
	}
	<-errCh
	return nil
}
