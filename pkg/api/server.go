package api

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psaab/srxmerge/pkg/configstore"
	"github.com/psaab/srxmerge/pkg/logging"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/metrics"
)

// Config configures the API server.
type Config struct {
	Addr      string
	HTTPSAddr string      // empty = no HTTPS
	TLS       bool        // serve HTTPSAddr with a self-signed certificate
	CertDir   string      // where the certificate is kept; empty = not persisted
	Auth      *AuthConfig // nil = no authentication
	Store     *configstore.Store
	Merger    *merge.Merger
	Recorder  *metrics.Recorder    // optional
	Events    *logging.EventBuffer // optional
	Logger    *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	httpServer  *http.Server
	httpsServer *http.Server
	handler     http.Handler
	store       *configstore.Store
	merger      *merge.Merger
	events      *logging.EventBuffer
	logger      *slog.Logger
	startTime   time.Time
}

// NewServer creates a new API server.
func NewServer(cfg Config) (*Server, error) {
	s := &Server{
		store:     cfg.Store,
		merger:    cfg.Merger,
		events:    cfg.Events,
		logger:    cfg.Logger,
		startTime: time.Now(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.merger == nil {
		s.merger = merge.New(merge.WithLogger(s.logger))
	}
	if s.store == nil {
		s.store = configstore.New("", configstore.WithMerger(s.merger), configstore.WithLogger(s.logger))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)

	registry := prometheus.NewRegistry()
	if cfg.Recorder != nil {
		if err := cfg.Recorder.Register(registry); err != nil {
			return nil, err
		}
	}
	registry.MustRegister(newCollector(s.store))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Stateless merging
	mux.HandleFunc("GET /api/v1/status", s.statusHandler)
	mux.HandleFunc("POST /api/v1/merge", s.mergeHandler)
	mux.HandleFunc("POST /api/v1/check", s.checkHandler)

	// Active configuration
	mux.HandleFunc("GET /api/v1/config", s.configHandler)
	mux.HandleFunc("GET /api/v1/config/policies", s.policiesHandler)
	mux.HandleFunc("GET /api/v1/config/export", s.configExportHandler)

	// Config management
	mux.HandleFunc("POST /api/v1/config/enter", s.configEnterHandler)
	mux.HandleFunc("POST /api/v1/config/exit", s.configExitHandler)
	mux.HandleFunc("GET /api/v1/config/status", s.configStatusHandler)
	mux.HandleFunc("POST /api/v1/config/load", s.configLoadHandler)
	mux.HandleFunc("POST /api/v1/config/delete", s.configDeleteHandler)
	mux.HandleFunc("POST /api/v1/config/commit", s.configCommitHandler)
	mux.HandleFunc("POST /api/v1/config/commit-check", s.configCommitCheckHandler)
	mux.HandleFunc("POST /api/v1/config/rollback", s.configRollbackHandler)
	mux.HandleFunc("GET /api/v1/config/show", s.configShowHandler)
	mux.HandleFunc("GET /api/v1/config/show-rollback", s.configShowRollbackHandler)
	mux.HandleFunc("GET /api/v1/config/compare", s.configCompareHandler)
	mux.HandleFunc("GET /api/v1/config/history", s.configHistoryHandler)

	// Merge events
	mux.HandleFunc("GET /api/v1/events", s.eventsHandler)
	mux.HandleFunc("GET /api/v1/events/stream", s.eventStreamHandler)

	s.handler = mux
	if cfg.Auth != nil {
		s.handler = authMiddleware(*cfg.Auth, mux)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TLS && cfg.HTTPSAddr != "" {
		cert, err := selfSignedCert(cfg.CertDir)
		if err != nil {
			s.logger.Warn("failed to generate self-signed certificate", "err", err)
		} else {
			s.httpsServer = &http.Server{
				Addr:    cfg.HTTPSAddr,
				Handler: s.handler,
				TLSConfig: &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				},
			}
		}
	}
	return s, nil
}

// Handler returns the routed handler, including authentication.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("HTTP API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if s.httpsServer != nil {
		go func() {
			s.logger.Info("HTTPS API server listening", "addr", s.httpsServer.Addr)
			if err := s.httpsServer.ListenAndServeTLS("", ""); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpsServer != nil {
		s.httpsServer.Shutdown(shutdownCtx)
	}
	return s.httpServer.Shutdown(shutdownCtx)
}

// selfSignedCert loads cert.pem/key.pem from dir or creates an ECDSA
// P-256 pair, writing it back to dir when dir is set.
func selfSignedCert(dir string) (tls.Certificate, error) {
	certPath, keyPath := filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
	if dir != "" {
		if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil {
			return cert, nil
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "srxmerge"
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: hostname, Organization: []string{"srxmerge"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if dir != "" {
		if err := os.MkdirAll(dir, 0700); err == nil {
			os.WriteFile(certPath, certPEM, 0644)
			os.WriteFile(keyPath, keyPEM, 0600)
		}
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}
