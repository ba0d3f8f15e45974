package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"firmaflow/internal/config"
	"firmaflow/internal/infra/artifact"
	"firmaflow/internal/infra/cachemem"
	"firmaflow/internal/infra/cacheredis"
	"firmaflow/internal/infra/container"
	"firmaflow/internal/infra/db"
	httpinfra "firmaflow/internal/infra/http"
	"firmaflow/internal/infra/keystore/soft"
	"firmaflow/internal/infra/notify"
	"firmaflow/internal/infra/policyopa"
	"firmaflow/internal/infra/revocation"
	"firmaflow/internal/infra/trust"
	"firmaflow/internal/infra/tsa"
	"firmaflow/internal/usecase"
	"firmaflow/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.NewStore(cfg.PostgresDSN)
	if err != nil {
		zlog.Fatal("failed to init store", zap.Error(err))
	}
	if err := store.Migrate(); err != nil {
		zlog.Fatal("failed to migrate", zap.Error(err))
	}

	certRepo := db.NewCertificateRepository(store.DB)
	requestRepo := db.NewRequestRepository(store.DB)
	signerRepo := db.NewSignerRepository(store.DB)
	signatureRepo := db.NewSignatureRepository(store.DB)
	documentRepo := db.NewDocumentRepository(store.DB)
	auditRepo := db.NewAuditRepository(store.DB)

	artifacts, err := artifact.NewFSStore(cfg.ArtifactRoot)
	if err != nil {
		zlog.Fatal("failed to init artifact store", zap.Error(err))
	}

	anchors := trust.New()
	if cfg.TrustRootDir != "" {
		if anchors, err = trust.LoadDirs(cfg.TrustRootDir, cfg.TrustIntermediateDir); err != nil {
			zlog.Fatal("failed to load trust anchors", zap.Error(err))
		}
	}

	keys := soft.NewManager()
	if cfg.KeyDir != "" {
		if keys, err = soft.LoadDir(cfg.KeyDir); err != nil {
			zlog.Fatal("failed to load signing keys", zap.Error(err))
		}
	}

	var cache usecase.ValidationCache
	if cfg.RedisAddr != "" {
		redisCache, err := cacheredis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		cache = cachemem.New()
	}

	var policy usecase.PolicyEngine
	if cfg.PolicyBundlePath != "" {
		policy, err = policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath)
	} else {
		policy, err = policyopa.NewEngineFromModule(ctx, policyopa.DefaultPolicy)
	}
	if err != nil {
		zlog.Fatal("failed to compile signing policy", zap.Error(err))
	}

	var notifier usecase.NotificationGateway
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookGateway(cfg.WebhookURL, cfg.WebhookTimeout(), zlog)
	} else {
		notifier = notify.NewLogGateway(zlog)
	}

	var timestamper usecase.TimestampAuthority
	if cfg.TSAURL != "" {
		timestamper = tsa.New(cfg.TSAURL, cfg.TSATimeout())
	}

	lifecycle := &usecase.CertificateLifecycle{
		Certs:        certRepo,
		Signatures:   signatureRepo,
		Oracle:       revocation.NewOracle(anchors, cfg.OCSPTimeout()),
		Anchors:      anchors,
		Cache:        cache,
		Notifier:     notifier,
		Audit:        auditRepo,
		Log:          zlog,
		CacheTTL:     cfg.ValidityCacheTTL(),
		CheckTimeout: cfg.OCSPTimeout(),
		Workers:      cfg.BatchWorkers,
	}
	engine := &usecase.SignatureEngine{
		Certs:      certRepo,
		Signatures: signatureRepo,
		Documents:  documentRepo,
		Artifacts:  artifacts,
		Containers: container.NewBuilder(keys),
		TSA:        timestamper,
		Validity:   lifecycle,
		Policy:     policy,
		Notifier:   notifier,
		Audit:      auditRepo,
		Log:        zlog,
		TSATimeout: cfg.TSATimeout(),
		ResultTTL:  cfg.SignatureResultTTL(),
	}
	orchestrator := &usecase.RequestOrchestrator{
		Requests:   requestRepo,
		Signers:    signerRepo,
		Documents:  documentRepo,
		Signatures: signatureRepo,
		Engine:     engine,
		Notifier:   notifier,
		Audit:      auditRepo,
		Log:        zlog,
	}

	go lifecycle.RunSweeper(ctx, cfg.ExpirySweepInterval(), cfg.ExpiryWarnDays())
	go orchestrator.RunExpirySweeper(ctx, cfg.RequestSweepInterval())
	if cfg.TrustRootDir != "" {
		go func() {
			ticker := time.NewTicker(cfg.TrustReloadInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := anchors.Reload(); err != nil {
						zlog.Warn("trust anchor reload failed", zap.Error(err))
					}
				}
			}
		}()
	}

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Lifecycle:    lifecycle,
		Orchestrator: orchestrator,
		Engine:       engine,
		Audit:        auditRepo,
		Store:        store,
		AdminAPIKey:  cfg.AdminAPIKey,
	})
	if err := srv.Run(); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}
