package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/config"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/console"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/controller"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/metrics"
)

// app holds the flags shared by every command.
type app struct {
	configPath  string
	envFile     string
	apiURL      string
	logFile     string
	metricsAddr string
	zapOpts     zap.Options
}

func newRootCmd() *cobra.Command {
	a := &app{zapOpts: zap.Options{Development: true}}

	root := &cobra.Command{
		Use:   "yk-dns-console",
		Short: "Manage DNS A-records held by a remote record store",
		Long: `Lists, creates and deletes domain to IP mappings kept by the record store API.
Run without a command to open the interactive console.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          a.runConsole,
	}

	zapFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	a.zapOpts.BindFlags(zapFlags)
	root.PersistentFlags().AddGoFlagSet(zapFlags)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Console config file (default $CONSOLE_CONFIG_PATH or "+config.DefaultConsoleConfigPath+")")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Env file loaded before reading the config")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "Record store API base URL, overrides the config file")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-bind-address", "", "Serve Prometheus metrics on this address (disabled when empty)")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", filepath.Join(os.TempDir(), "yk-dns-console.log"), "Log file used while the console owns the terminal")

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Open the interactive console",
		Args:  cobra.NoArgs,
		RunE:  a.runConsole,
	}

	root.AddCommand(consoleCmd, a.listCmd(), a.addCmd(), a.deleteCmd(), a.importCmd())
	return root
}

// setup installs the logger, starts the optional metrics endpoint and builds
// the record sync controller from configuration. The returned release func
// closes the record store and must be called once the command is done.
func (a *app) setup(ctx context.Context, logOut io.Writer) (*controller.RecordSyncController, func(), error) {
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&a.zapOpts), zap.WriteTo(logOut)))
	log := ctrl.Log.WithName("setup")

	if err := config.LoadDotEnv(a.envFile); err != nil {
		return nil, nil, err
	}

	var (
		cfg *config.ConsoleConfig
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadConsoleConfigFromPath(a.configPath)
	} else {
		cfg, err = config.LoadConsoleConfig()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("unable to load console config: %w", err)
	}
	if a.apiURL != "" {
		cfg.API["base_url"] = a.apiURL
	}
	log.Info("loaded console config", "store", cfg.Store, "baseURL", cfg.API["base_url"], "allowStaleResponses", cfg.AllowStaleResponses)

	store, err := dns.NewStore(cfg.Store, ctrl.Log.WithName("store-"+cfg.Store), cfg.API)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create record store: %w", err)
	}

	if a.metricsAddr != "" {
		serveMetrics(ctx, log, a.metricsAddr)
	}

	c := &controller.RecordSyncController{
		Store:               &metrics.InstrumentedStore{Next: store},
		Log:                 ctrl.Log.WithName("record-sync"),
		AllowStaleResponses: cfg.AllowStaleResponses,
	}
	return c, func() { closeStore(log, store) }, nil
}

// closeStore releases backends that hold connections.
func closeStore(log logr.Logger, store dns.Store) {
	closer, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Error(err, "unable to close record store")
	}
}

func serveMetrics(ctx context.Context, log logr.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server exited")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func (a *app) runConsole(cmd *cobra.Command, _ []string) error {
	logOut, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("unable to open log file: %w", err)
	}
	defer logOut.Close()

	c, release, err := a.setup(cmd.Context(), logOut)
	if err != nil {
		return err
	}
	defer release()
	ctrl.Log.WithName("setup").Info("starting console", "version", Version)
	return console.Run(cmd.Context(), c)
}
