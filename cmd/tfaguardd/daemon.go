package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/tonkeeper/2fa-extension/config"
	"github.com/tonkeeper/2fa-extension/journal"
	"github.com/tonkeeper/2fa-extension/journal/grpcarchive"
	"github.com/tonkeeper/2fa-extension/log"
	"github.com/tonkeeper/2fa-extension/metrics"
	"github.com/tonkeeper/2fa-extension/rpc"
	"github.com/tonkeeper/2fa-extension/service"
	"github.com/tonkeeper/2fa-extension/statedb"
	"github.com/tonkeeper/2fa-extension/wallet"
)

type daemon struct {
	cfg     *config.Config
	logBack *log.Backend
	log     *logging.Logger

	db           *statedb.DB
	archive      journal.Archive
	closeJournal func() error
	metrics      *metrics.Metrics
	svc          *service.Service

	grpc       *grpc.Server
	metricsSrv *http.Server

	shutdownOnce sync.Once
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	logBack, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	d := &daemon{
		cfg:     cfg,
		logBack: logBack,
		log:     logBack.GetLogger("tfaguardd"),
		metrics: metrics.New(),
	}
	if err := d.init(); err != nil {
		d.shutdown()
		return nil, err
	}
	return d, nil
}

func (d *daemon) init() error {
	var err error
	if d.db, err = statedb.Open(d.cfg.Server.StatePath()); err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	if d.archive, d.closeJournal, err = d.cfg.Journal.Open(journal.UsageDaemon); err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	signer, err := d.cfg.Receipts.Signer()
	if err != nil {
		return fmt.Errorf("failed to load receipt signer: %w", err)
	}
	if signer != nil {
		d.log.Noticef("Signing receipts with %s.", signer.Public())
	}

	accounts := wallet.NewMemoryDirectory()
	accounts.AutoCreate = d.cfg.Server.AutoCreateAccounts
	accounts.GuardAddress = wallet.ExtensionAddress
	if !accounts.AutoCreate {
		d.log.Warning("AutoCreateAccounts is off; installs fail until accounts are provisioned.")
	}

	d.svc, err = service.New(service.Options{
		Delays:        d.cfg.Delays.Guard(),
		Fees:          *d.cfg.Fees,
		Accounts:      accounts,
		DB:            d.db,
		Journal:       journal.New(d.archive),
		ReceiptSigner: signer,
		Metrics:       d.metrics,
		Log:           d.logBack,
	})
	if err != nil {
		return err
	}

	max := d.cfg.Server.MaxMsgBytes
	d.grpc = grpc.NewServer(
		grpc.MaxRecvMsgSize(max),
		grpc.MaxSendMsgSize(max),
		grpc.UnaryInterceptor(rpc.LoggingInterceptor(d.logBack.GetLogger("rpc"))),
	)
	rpc.RegisterGuardServer(d.grpc, &rpc.Server{Backend: d.svc})
	grpcarchive.RegisterArchiveServer(d.grpc, &grpcarchive.Server{Archive: d.archive})

	if addr := d.cfg.Server.MetricsAddress; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.metrics.Handler())
		d.metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}
	return nil
}

// serve runs the gRPC server on lis and, when configured, the metrics
// listener. It returns when the gRPC server stops.
func (d *daemon) serve(lis net.Listener) error {
	if d.metricsSrv != nil {
		go func() {
			d.log.Noticef("Metrics listening on %s.", d.metricsSrv.Addr)
			if err := d.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.Errorf("Metrics server failed: %v", err)
			}
		}()
	}
	d.log.Noticef("%s listening on %s (%d guard(s)).", d.identifier(), lis.Addr(), len(d.svc.Owners()))
	if err := d.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (d *daemon) identifier() string {
	if d.cfg.Server.Identifier != "" {
		return d.cfg.Server.Identifier
	}
	return "tfaguardd"
}

func (d *daemon) rotateLog() {
	if err := d.logBack.Rotate(); err != nil {
		d.log.Errorf("Failed to rotate log file: %v", err)
		return
	}
	d.log.Notice("Log rotated.")
}

func (d *daemon) shutdown() {
	d.shutdownOnce.Do(func() {
		d.log.Notice("Shutting down.")
		if d.grpc != nil {
			d.grpc.GracefulStop()
		}
		if d.metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = d.metricsSrv.Shutdown(ctx)
			cancel()
		}
		if d.closeJournal != nil {
			if err := d.closeJournal(); err != nil {
				d.log.Errorf("Failed to close journal: %v", err)
			}
		}
		if d.db != nil {
			if err := d.db.Close(); err != nil {
				d.log.Errorf("Failed to close state database: %v", err)
			}
		}
	})
}
