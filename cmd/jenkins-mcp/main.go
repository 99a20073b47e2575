package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/jenkins-mcp-server/internal/api"
	"github.com/rflorenc/jenkins-mcp-server/internal/config"
	"github.com/rflorenc/jenkins-mcp-server/internal/jenkins"
	"github.com/rflorenc/jenkins-mcp-server/internal/mcpserver"
	"github.com/rflorenc/jenkins-mcp-server/internal/models"
	"github.com/rflorenc/jenkins-mcp-server/internal/observe"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	shutdownTimeout  = 10 * time.Second
	startupPingLimit = 10 * time.Second
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags *config.Flags
	cmd := &cobra.Command{
		Use:   "jenkins-mcp",
		Short: "Serve the Jenkins REST API as MCP tools",
		Long: `jenkins-mcp exposes Jenkins items, builds, nodes and the build queue as
Model Context Protocol tools over stdio, SSE or streamable HTTP.

Credentials come from --jenkins-* flags, jenkins_* environment variables or
the config file. On HTTP transports each session may override them with
x-jenkins-url, x-jenkins-username and x-jenkins-password headers.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	flags = config.BindFlags(cmd.Flags())
	return cmd
}

// loadConfig layers defaults, the config file, the environment and explicit
// flags, in increasing precedence.
func loadConfig(fs *pflag.FlagSet, f *config.Flags) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		if err := cfg.LoadFile(f.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyFlags(fs, f)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	// stdout belongs to the stdio transport; logs always go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	enumerator, err := newEnumerator(cfg)
	if err != nil {
		slog.Error("invalid classification rules", "err", err)
		return err
	}

	conn := models.Connection{
		URL:       cfg.Jenkins.URL,
		Username:  cfg.Jenkins.Username,
		Password:  cfg.Jenkins.Password,
		Timeout:   cfg.Jenkins.Timeout,
		VerifySSL: cfg.Jenkins.VerifySSL,
	}
	srv := mcpserver.New(mcpserver.Options{
		Version:               version,
		ReadOnly:              cfg.ReadOnly,
		Connection:            conn,
		Singleton:             cfg.Jenkins.SessionSingleton,
		FolderDepthPerRequest: cfg.FolderDepthPerRequest,
		Factory:               mcpserver.NewFactory(enumerator, metrics),
		Metrics:               metrics,
	})

	slog.Info("jenkins-mcp starting",
		"version", version,
		"transport", cfg.Server.Transport,
		"read_only", cfg.ReadOnly,
		"jenkins_url", conn.BaseURL(),
		"jenkins_username", conn.Username,
		"jenkins_password", conn.MaskedPassword(),
	)

	var pinger api.Pinger
	if conn.Complete() {
		j := jenkins.New(&conn, enumerator)
		checkJenkins(ctx, j)
		pinger = j
	} else {
		slog.Info("no default Jenkins credentials; clients must send x-jenkins-* headers")
	}

	if cfg.Server.Transport == config.TransportStdio {
		if err := srv.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("stdio transport error", "err", err)
			return err
		}
		return nil
	}

	router := api.NewRouter(&api.Server{
		MCP:       srv,
		Transport: cfg.Server.Transport,
		Metrics:   metrics,
		Pinger:    pinger,
		Console:   api.HeaderConsole(conn, enumerator),
	})
	return serveHTTP(ctx, cfg.Addr(), router)
}

func newEnumerator(cfg *config.Config) (*jenkins.Enumerator, error) {
	rules := make([]jenkins.Rule, 0, len(cfg.Classification))
	for _, r := range cfg.Classification {
		rules = append(rules, jenkins.Rule{Suffix: r.Suffix, Kind: models.ItemKind(r.Kind)})
	}
	classifier, err := jenkins.NewClassifier(rules)
	if err != nil {
		return nil, err
	}
	return jenkins.NewEnumerator(classifier), nil
}

// checkJenkins logs whether the configured controller answers. Failures are
// not fatal since header credentials may still work.
func checkJenkins(ctx context.Context, j *jenkins.Jenkins) {
	ctx, cancel := context.WithTimeout(ctx, startupPingLimit)
	defer cancel()
	info, err := j.Ping(ctx)
	if err != nil {
		slog.Warn("PING FAILED", "err", err)
		return
	}
	slog.Info("PING OK", "jenkins_version", info.Version, "use_crumbs", info.UseCrumbs, "use_security", info.UseSecurity)
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(sctx); err != nil {
			// Open SSE streams keep Shutdown waiting.
			slog.Warn("graceful shutdown timed out, closing connections", "err", err)
			return httpServer.Close()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		return err
	}
	slog.Info("goodbye")
	return nil
}
