package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spvd/spvd/infrastructure/config"
	"github.com/spvd/spvd/infrastructure/logger"
	"github.com/spvd/spvd/infrastructure/os/signal"
	"github.com/spvd/spvd/netadapter"
	"github.com/spvd/spvd/peer"
	"github.com/spvd/spvd/util/panics"
	"github.com/spvd/spvd/util/profiling"
	"github.com/spvd/spvd/version"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrShowVersion) {
			fmt.Println(config.VersionString())
			os.Exit(0)
		}
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	logger.InitLog(cfg.LogFile(), cfg.ErrLogFile(), true)
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, nil)

	// Show version at startup.
	log.Infof("Version %s on %s", version.Version(), cfg.NetParams().Name)

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		profiling.Start(cfg.Profile, log)
	}

	err = run(cfg, signal.InterruptListener())
	if err != nil {
		panics.Exit(log, fmt.Sprintf("%+v", err))
	}
}

// run drives one session until it closes or interrupt fires.
func run(cfg *config.Config, interrupt <-chan struct{}) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	spawn("main.interrupt", func() {
		select {
		case <-interrupt:
			cancel()
		case <-ctx.Done():
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := peer.NewMetrics(reg)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	if cfg.Metrics != "" {
		group.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics, reg)
		})
	}
	group.Go(func() error {
		defer cancel()
		return runSession(ctx, cfg, metrics)
	})
	return group.Wait()
}

func serveMetrics(ctx context.Context, listenAddr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	spawn("main.serveMetrics", func() {
		log.Infof("Metrics server listening on %s", listenAddr)
		errChan <- server.ListenAndServe()
	})

	select {
	case err := <-errChan:
		return errors.Wrap(err, "metrics server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	return errors.WithStack(server.Shutdown(shutdownCtx))
}

// runSession opens the connection the configuration asks for, runs a session
// over it and returns once the session closes.
func runSession(ctx context.Context, cfg *config.Config, metrics *peer.Metrics) error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "runSession")
	defer onEnd()

	sessionCfg, err := newSessionConfig(cfg, metrics)
	if err != nil {
		return err
	}

	adapter := netadapter.NewNetAdapter(&netadapter.Dialer{
		Proxy:        cfg.Proxy,
		ProxyUser:    cfg.ProxyUser,
		ProxyPass:    cfg.ProxyPass,
		TorIsolation: cfg.TorIsolation,
		Timeout:      cfg.ConnectTimeout,
	})
	defer func() {
		if err := adapter.Stop(); err != nil {
			log.Warnf("Error stopping the network adapter: %s", err)
		}
	}()

	var session *peer.Session
	if cfg.Connect != "" {
		session, err = connect(ctx, adapter, sessionCfg, cfg.Connect)
	} else {
		session, err = accept(ctx, adapter, sessionCfg, cfg.Listen)
	}
	if err != nil {
		return err
	}

	select {
	case <-session.Done():
	case <-ctx.Done():
		session.Close()
	}

	reason, _ := session.CloseReason()
	if !reason.Intentional() {
		return errors.Wrapf(session.Err(), "session with %s ended: %s", session, reason)
	}
	return nil
}

func connect(ctx context.Context, adapter *netadapter.NetAdapter, sessionCfg *peer.Config,
	address string) (*peer.Session, error) {

	session, err := peer.NewOutboundSession(sessionCfg, address)
	if err != nil {
		return nil, err
	}
	conn, err := adapter.Connect(ctx, address)
	if err != nil {
		return nil, err
	}
	err = startSession(session, conn)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// accept waits for the first incoming connection on address and runs a
// session over it. Later connections are refused.
func accept(ctx context.Context, adapter *netadapter.NetAdapter, sessionCfg *peer.Config,
	address string) (*peer.Session, error) {

	connChan := make(chan *netadapter.Conn, 1)
	adapter.SetConnectionHandler(func(conn *netadapter.Conn) {
		select {
		case connChan <- conn:
		default:
			log.Infof("Refusing connection from %s", conn)
			_ = conn.Close()
		}
	})
	listenAddr, err := adapter.Listen(address)
	if err != nil {
		return nil, err
	}
	log.Infof("Waiting for a peer on %s", listenAddr)

	select {
	case conn := <-connChan:
		session := peer.NewInboundSession(sessionCfg)
		err := startSession(session, conn)
		if err != nil {
			return nil, err
		}
		return session, nil
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}

// startSession runs session over conn. conn is closed if the session cannot
// take it.
func startSession(session *peer.Session, conn *netadapter.Conn) error {
	err := session.AssociateConnection(conn)
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Debugf("Error closing %s: %s", conn, closeErr)
		}
		return err
	}
	return nil
}
