package http

import (
	"net/http"

	"firmaflow/internal/config"
	"firmaflow/internal/infra/db"
	"firmaflow/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	lifecycle    *usecase.CertificateLifecycle
	orchestrator *usecase.RequestOrchestrator
	engine       *usecase.SignatureEngine

	certs     CertificateReader
	requests  RequestReader
	documents DocumentStore
	audit     AuditReader
	artifacts usecase.ArtifactStore

	adminAPIKey string
}

type ServerDeps struct {
	Lifecycle    *usecase.CertificateLifecycle
	Orchestrator *usecase.RequestOrchestrator
	Engine       *usecase.SignatureEngine
	Certificates CertificateReader
	Requests     RequestReader
	Documents    DocumentStore
	Audit        AuditReader
	Artifacts    usecase.ArtifactStore
	Store        *db.Store
	AdminAPIKey  string
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:          cfg,
		store:        deps.Store,
		r:            r,
		lifecycle:    deps.Lifecycle,
		orchestrator: deps.Orchestrator,
		engine:       deps.Engine,
		certs:        deps.Certificates,
		requests:     deps.Requests,
		documents:    deps.Documents,
		audit:        deps.Audit,
		artifacts:    deps.Artifacts,
		adminAPIKey:  deps.AdminAPIKey,
	}
	if s.certs == nil && deps.Lifecycle != nil {
		s.certs = deps.Lifecycle.Certs
	}
	if s.requests == nil && deps.Orchestrator != nil {
		s.requests = deps.Orchestrator.Requests
	}
	if s.documents == nil && deps.Engine != nil {
		s.documents = deps.Engine.Documents
	}
	if s.artifacts == nil && deps.Engine != nil {
		s.artifacts = deps.Engine.Artifacts
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/certificates", s.handleIssueCertificate)
		v1.GET("/certificates/:cert_id", s.handleGetCertificate)
		v1.GET("/certificates/:cert_id/validity", s.handleCertificateValidity)
		v1.POST("/certificates/:cert_id/revoke", s.handleRevokeCertificate)
		v1.POST("/certificates/:cert_id/suspend", s.handleSuspendCertificate)
		v1.POST("/certificates/:cert_id/reinstate", s.handleReinstateCertificate)
		v1.POST("/certificates/:cert_id/renew", s.handleRenewCertificate)

		v1.POST("/documents", s.handleCreateDocument)
		v1.GET("/documents/:document_id", s.handleGetDocument)
		v1.GET("/documents/:document_id/verification", s.handleVerifyDocument)

		v1.POST("/requests", s.handleCreateRequest)
		v1.GET("/requests/:request_id", s.handleGetRequest)
		v1.POST("/requests/:request_id/start", s.handleStartRequest)
		v1.POST("/requests/:request_id/act", s.handleAct)
		v1.POST("/requests/:request_id/delegate", s.handleDelegate)
		v1.POST("/requests/:request_id/cancel", s.handleCancelRequest)

		v1.POST("/signatures/:signature_id/countersign", s.handleCountersign)
		v1.GET("/signatures/:signature_id/verification", s.handleVerifySignature)

		v1.GET("/audit/:entity_type/:entity_id", s.handleAuditTrail)
	}

	s.r.NoRoute(s.handleNoRoute)
}

// handleNoRoute dispatches the colon-suffixed action paths gin's router
// cannot register next to parameterized siblings.
func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		switch c.Request.URL.Path {
		case "/v1/certificates:import":
			s.handleImportCertificate(c)
			return
		}
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
