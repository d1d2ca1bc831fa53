// Package httpserver exposes the command surface of spec.md §6 over HTTP,
// the same way the teacher lineage's internal/*/httpserver packages expose
// their apiv1 clients: a thin gin layer translating requests into calls on
// internal/prover and internal/verifier and errors into RFC7807 problem
// responses. It is a demonstration surface, not the protocol itself — the
// protocol is the Go API those two packages already provide.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"anoncreds/internal/prover"
	"anoncreds/internal/verifier"
	"anoncreds/pkg/config"
	"anoncreds/pkg/logger"
	"anoncreds/pkg/trace"
)

// Service is the demo HTTP command surface. It holds no state of its own
// beyond the cursor registries paging the prover's two search flows; every
// credential, proof and request it handles is the caller's.
type Service struct {
	server *http.Server
	log    *logger.Log

	prover   *prover.Prover
	verifier *verifier.Verifier

	credCursors  *cursors
	proofCursors *cursors
}

// New builds and starts the HTTP command surface, listening on
// cfg.APIServer.Addr.
func New(ctx context.Context, cfg *config.Cfg, log *logger.Log, tracer *trace.Tracer, p *prover.Prover, v *verifier.Verifier) (*Service, error) {
	switch cfg.Common.Production {
	case true:
		gin.SetMode(gin.ReleaseMode)
	case false:
		gin.SetMode(gin.DebugMode)
	}

	svcLog := log.New("httpserver")

	s := &Service{
		log:          svcLog,
		prover:       p,
		verifier:     v,
		credCursors:  newCursors(),
		proofCursors: newCursors(),
	}

	engine := gin.New()
	engine.Use(requestID(), requestLogger(svcLog), recovery(svcLog), cors.Default())
	problem404 := Problem404()
	engine.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, problem404) })

	s.registerRoutes(ctx, engine, tracer)

	s.server = &http.Server{
		Addr:              cfg.APIServer.Addr,
		Handler:           engine,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			svcLog.Error(err, "listen_and_serve")
		}
	}()

	return s, nil
}

// Close shuts down the HTTP server, honoring ctx's deadline for in-flight
// requests.
func (s *Service) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handler adapts a (ctx, *gin.Context) -> (any, error) function into a gin
// handler, mirroring the teacher's RegEndpoint: on success it writes body
// as JSON with status; on error it writes an RFC7807 problem instead.
func (s *Service) handler(tracer *trace.Tracer, name string, status int, fn func(context.Context, *gin.Context) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), name)
		defer span.End()

		res, err := fn(ctx, c)
		if err != nil {
			s.log.Debug("handler error", "name", name, "request_id", c.GetString("request_id"), "err", err)
			c.JSON(statusFor(err), problemFor(err))
			return
		}
		c.JSON(status, res)
	}
}

func (s *Service) registerRoutes(_ context.Context, engine *gin.Engine, tracer *trace.Tracer) {
	root := engine.Group("/v1")

	root.POST("/nonce", s.handler(tracer, "generate_nonce", http.StatusOK, s.generateNonce))
	root.POST("/unqualified", s.handler(tracer, "to_unqualified", http.StatusOK, s.toUnqualified))

	prover := root.Group("/prover")
	prover.POST("/master-secrets", s.handler(tracer, "prover_create_master_secret", http.StatusCreated, s.createMasterSecret))
	prover.POST("/credential-requests", s.handler(tracer, "prover_create_credential_req", http.StatusOK, s.createCredentialRequest))
	prover.POST("/credentials", s.handler(tracer, "prover_store_credential", http.StatusCreated, s.storeCredential))
	prover.GET("/credentials/:id", s.handler(tracer, "prover_get_credential", http.StatusOK, s.getCredential))
	prover.DELETE("/credentials/:id", s.handler(tracer, "prover_delete_credential", http.StatusOK, s.deleteCredential))
	prover.POST("/credentials/search", s.handler(tracer, "prover_search_credentials", http.StatusOK, s.openCredentialSearch))
	prover.POST("/credentials/search/:cursor/fetch", s.handler(tracer, "prover_fetch_credentials", http.StatusOK, s.fetchCredentialSearch))
	prover.DELETE("/credentials/search/:cursor", s.handler(tracer, "prover_close_credentials_search", http.StatusOK, s.closeCredentialSearch))
	prover.POST("/proof-requests/search", s.handler(tracer, "prover_search_for_proof_req", http.StatusOK, s.openProofSearch))
	prover.POST("/proof-requests/search/:cursor/fetch", s.handler(tracer, "prover_fetch_for_proof_req", http.StatusOK, s.fetchProofSearch))
	prover.DELETE("/proof-requests/search/:cursor", s.handler(tracer, "prover_close_proof_req_search", http.StatusOK, s.closeProofSearch))
	prover.POST("/proofs", s.handler(tracer, "prover_create_proof", http.StatusOK, s.createProof))

	verifier := root.Group("/verifier")
	verifier.POST("/proofs/verify", s.handler(tracer, "verifier_verify_proof", http.StatusOK, s.verifyProof))
}
