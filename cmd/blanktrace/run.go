package main

import (
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/blanktrace/blanktrace/internal/certs"
	"github.com/blanktrace/blanktrace/internal/cleanup"
	"github.com/blanktrace/blanktrace/internal/config"
	"github.com/blanktrace/blanktrace/internal/mitm"
	"github.com/blanktrace/blanktrace/internal/policy"
	"github.com/blanktrace/blanktrace/internal/rewrite"
	"github.com/blanktrace/blanktrace/internal/store"
	"github.com/blanktrace/blanktrace/internal/telemetry"
)

func runProxy(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := configFlag(fs)
	caCertPath := fs.String("ca-cert", "ca_cert.pem", "path to the CA certificate (generated on first run)")
	caKeyPath := fs.String("ca-key", "ca_key.pem", "path to the CA private key (generated on first run)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := telemetry.New()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	authority, err := certs.LoadOrCreate(*caCertPath, *caKeyPath)
	if err != nil {
		return fmt.Errorf("load CA: %w", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	leaves := certs.NewLeafCache(authority, certs.DefaultCacheCap)
	sink := store.NewSink(db, cfg.LogChannelBuffer, logger.WithField("component", "sink"))
	whitelist := policy.NewWhitelistCache(db, policy.DefaultWhitelistTTL)
	blocker := policy.NewBlocker(cfg.Blocking.Compiled(), cfg.Blocking.AutoBlock, cfg.Blocking.AutoBlockThreshold, db, whitelist, logger.WithField("component", "blocker"))
	fingerprint := policy.NewFingerprintState(cfg.Fingerprint)

	chain := rewrite.NewChain(
		rewrite.NewBlockRewriter(blocker, logger.WithField("component", "block_rewriter")),
		rewrite.NewFingerprintRewriter(fingerprint, sink, logger.WithField("component", "fingerprint_rewriter")),
		rewrite.NewCookieRewriter(cfg.Cookies.BlockAll, cfg.Cookies.LogAttempts, cfg.Cookies.AutoBlockTrackers, cfg.Cookies.AllowList, cfg.Cookies.BlockList, cfg.Blocking.Compiled(), sink, logger.WithField("component", "cookie_rewriter")),
	)

	engine := mitm.NewEngine(leaves, chain, nil, sink, logger.WithField("component", "engine"))
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.EffectivePort())
	listener := mitm.NewListener(addr, engine, logger.WithField("component", "listener"))

	scheduler := cleanup.NewScheduler(db, time.Duration(cfg.Cleanup.IntervalSeconds)*time.Second, cfg.Cleanup.RetentionDays, logger.WithField("component", "cleanup"))

	ctx, cancel := shutdownContext()
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sink.Run(ctx)
	}()

	if cfg.Cleanup.IsEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listener.Serve() }()

	logger.Info("blanktrace proxy listening on %s", addr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("listener exited: %v", err)
		}
	}

	if err := listener.Shutdown(); err != nil {
		logger.Warn("shutdown error: %v", err)
	}
	cancel()
	wg.Wait()

	return nil
}
