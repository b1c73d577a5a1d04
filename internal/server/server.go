package server

import (
	"crypto/ecdsa"
	"net/http"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/encryption"
	"token_distributor/internal/metrics"
	"token_distributor/internal/processors"
	"token_distributor/internal/repository"
	"token_distributor/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	serviceName     = "Token Distribution API"
	nativeCurrency  = "KDA"
	maxBodyBytes    = 1 << 20
	defaultListSize = 50
)

// SignerSource hands out the chain client of a custodial key.
type SignerSource interface {
	ForKey(key *ecdsa.PrivateKey) repository.EthereumRepository
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health() error
}

// Config for the HTTP API handler. Store, Wallets, Signers, Encryption and
// Database are optional; the routes depending on them answer 503 when they are
// missing.
type Config struct {
	App         *config.Config
	Repo        repository.EthereumRepository
	Distributor *services.BulkDistributor
	Processor   *processors.RequestProcessor
	Store       repository.DistributionStore
	Wallets     repository.WalletStore
	Signers     SignerSource
	Encryption  encryption.Service
	Metrics     *metrics.Metrics
	Database    HealthChecker
}

type server struct {
	Config
	now func() time.Time
}

// New returns an HTTP handler exposing the distribution API.
func New(cfg Config) http.Handler {
	s := &server{Config: cfg, now: time.Now}
	auth := authenticator{
		secret:   cfg.App.Server.JWTSecret,
		required: cfg.App.Server.AuthRequired,
	}

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", s.health)
	router.Handle("/metrics", cfg.Metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/token-info", s.tokenInfo)
		r.Get("/distributions", s.listDistributions)

		r.Group(func(r chi.Router) {
			r.Use(auth.Optional())
			r.Post("/distribute-tokens", s.distributeTokens)
			r.Post("/distribute-tokens-stream", s.distributeTokensStream)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Use(auth.Required())
			r.Get("/balance", s.walletBalance)
			r.Get("/native-balance", s.walletNativeBalance)
			r.Post("/withdraw", s.withdraw)
		})
	})
	return router
}
