package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackmock/trackmock/pkg/api"
	"github.com/trackmock/trackmock/pkg/config"
	"github.com/trackmock/trackmock/pkg/gate"
	"github.com/trackmock/trackmock/pkg/logging"
	"github.com/trackmock/trackmock/pkg/store"
	"github.com/trackmock/trackmock/pkg/webhook"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	host       string
	port       int
	configFile string
	logLevel   string
	logFormat  string
	empty      bool
	jwtSecret  string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server (default command)",
	Example: `  # Start with the seeded sample data set
  trackmock serve

  # Start empty on a custom port
  trackmock serve --empty --port 3000

  # Start from a config file
  trackmock serve --config trackmock.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(&serveFlagVals)
	},
}

func initServeCmd() {
	rootCmd.AddCommand(serveCmd)

	// The same flags are registered on the root command so plain
	// `trackmock --port 3000` works without the serve subcommand.
	f := &serveFlagVals
	for _, cmd := range []*cobra.Command{serveCmd, rootCmd} {
		cmd.Flags().StringVar(&f.host, "host", "", "Bind address (default 127.0.0.1)")
		cmd.Flags().IntVarP(&f.port, "port", "p", 0, "HTTP port (default 8080)")
		cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to YAML config file")
		cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
		cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
		cmd.Flags().BoolVar(&f.empty, "empty", false, "Start with an empty store instead of the sample data set")
		cmd.Flags().StringVar(&f.jwtSecret, "jwt-secret", "", "Accept HS256 JWTs signed with this secret")
	}
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then explicit flags.
func loadConfig(f *serveFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.host != "" {
		cfg.Host = f.host
	}
	if f.port != 0 {
		cfg.Port = f.port
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	if f.empty {
		cfg.Seed = false
	}
	if f.jwtSecret != "" {
		cfg.JWTSecret = f.jwtSecret
	}
	return cfg, cfg.Validate()
}

func runServe(f *serveFlags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	storeOpts := []store.Option{store.WithLogger(log)}
	if cfg.Seed {
		storeOpts = append(storeOpts, store.WithSeed())
	}
	st := store.New(storeOpts...)

	dispatcher := webhook.New(st, webhook.Config{
		JitterMin:         time.Duration(cfg.Webhook.JitterMinMS) * time.Millisecond,
		JitterMax:         time.Duration(cfg.Webhook.JitterMaxMS) * time.Millisecond,
		Timeout:           time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
		PoisonProbability: cfg.Webhook.PoisonProbability,
		LegacySignature:   cfg.Webhook.LegacySignature,
	}, webhook.WithLogger(log))
	defer dispatcher.Close()
	st.SetEventSink(dispatcher)

	g := gate.New(st, gate.Config{
		Window:    cfg.RateLimit.Window(),
		Limit:     cfg.RateLimit.Limit,
		JWTSecret: cfg.JWTSecret,
	})

	server := api.New(st, g, dispatcher, api.WithLogger(log))
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
