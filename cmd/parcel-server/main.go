// Command parcel-server runs the message-and-file transfer server:
// it binds a listener (optionally mTLS-wrapped and metered), wires the
// message executor to a Postgres-backed notification sink, starts the
// admin HTTP surface, and drives the accept loop until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/parcelnet/parcel/internal/config"
	"github.com/parcelnet/parcel/internal/corelog"
	"github.com/parcelnet/parcel/internal/exec"
	"github.com/parcelnet/parcel/internal/httpapi"
	"github.com/parcelnet/parcel/internal/metrics"
	"github.com/parcelnet/parcel/internal/server"
	"github.com/parcelnet/parcel/internal/store"
	"github.com/parcelnet/parcel/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "parcel-server:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("parcel-server", pflag.ContinueOnError)

	root := flags.String("root", ".", "filesystem root for stored files")
	cert := flags.String("cert", "", "path to the server's TLS certificate (enables mTLS)")
	key := flags.String("key", "", "path to the server's TLS private key")
	caCert := flags.String("ca-cert", "", "path to the CA certificate used to authenticate clients")
	webAddress := flags.String("web-address", "127.0.0.1:8080", "admin HTTP listen address")
	disableWeb := flags.Bool("disable-web", false, "disable the admin HTTP surface")
	logLevel := flags.String("log-level", "INFO", "log level: DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL")
	configPath := flags.String("config", "", "optional TOML config file; flags take precedence")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	var fileCfg config.File
	if *configPath != "" {
		var err error
		fileCfg, err = config.LoadFile(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	serverAddress := "127.0.0.1:11111"
	if flags.NArg() > 0 {
		serverAddress = flags.Arg(0)
	} else if fileCfg.ServerAddress != "" {
		serverAddress = fileCfg.ServerAddress
	}
	serverAddress = config.NormalizeAddress(serverAddress)

	rootFlag := ""
	if flags.Changed("root") {
		rootFlag = *root
	}
	rootDir := config.FirstNonEmpty(rootFlag, fileCfg.Root, ".")
	databaseURL := config.FirstNonEmpty(os.Getenv("DATABASE_URL"), fileCfg.DatabaseURL)

	logBackend, err := corelog.New(os.Stderr, *logLevel)
	if err != nil {
		return err
	}
	log := logBackend.GetLogger("parcel-server")

	m := metrics.New(prometheus.DefaultRegisterer)

	listener, err := transport.ListenTCP(serverAddress)
	if err != nil {
		return fmt.Errorf("bind %s: %w", serverAddress, err)
	}

	certPath := config.FirstNonEmpty(*cert, fileCfg.Cert)
	keyPath := config.FirstNonEmpty(*key, fileCfg.Key)
	caCertPath := config.FirstNonEmpty(*caCert, fileCfg.CACert)
	if certPath != "" || keyPath != "" || caCertPath != "" {
		listener, err = transport.NewTLSListener(listener, transport.TLSConfig{
			CertFile: certPath,
			KeyFile:  keyPath,
			CACert:   caCertPath,
		})
		if err != nil {
			return fmt.Errorf("configure mTLS: %w", err)
		}
		log.Infof("mTLS enabled, client certificates must chain to %s", caCertPath)
	}
	listener = transport.NewMeteredListener(listener, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink exec.Sink
	if databaseURL != "" {
		repo, err := store.Open(ctx, databaseURL, log)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer repo.Close()

		channelSink := exec.NewChannelSink(log, repo.Notify)
		defer channelSink.Halt()
		sink = channelSink

		if !*disableWeb {
			webFlag := ""
			if flags.Changed("web-address") {
				webFlag = *webAddress
			}
			webAddr := config.FirstNonEmpty(webFlag, fileCfg.WebAddress, "127.0.0.1:8080")
			admin := httpapi.New(repo, rootDir, m, logBackend.GetLogger("httpapi"))
			httpServer := &http.Server{Addr: webAddr, Handler: admin.Handler()}

			go func() {
				log.Infof("admin HTTP surface listening at %s", webAddr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("admin HTTP server stopped: %v", err)
				}
			}()

			go func() {
				<-ctx.Done()
				_ = httpServer.Close()
			}()
		}
	} else {
		log.Warningf("no DATABASE_URL configured; running without persistence or the admin HTTP surface")
	}

	executor := exec.New(rootDir, sink, logBackend.GetLogger("exec"))
	supervisor := server.New(listener, server.WithMetrics(executor, m), log)

	log.Infof("parcel-server listening at %s, root %s", serverAddress, rootDir)
	if err := supervisor.Run(ctx); err != nil {
		return err
	}

	log.Info("parcel-server shut down gracefully")
	return nil
}
