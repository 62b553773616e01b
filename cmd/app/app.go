package main

import (
	"fmt"

	"mission_rewards/internal/repository"
	"mission_rewards/internal/service"
	"mission_rewards/internal/verify"
	"mission_rewards/pkg/auth"
)

// app holds the wired services shared by every command.
type app struct {
	cfg     *Config
	repo    *repository.Repository
	catalog *repository.CachedCatalog
	limiter *repository.RateLimiter

	runs    *service.RunService
	ledger  *service.RewardLedger
	issuer  *service.ProofTokenIssuer
	gateway *service.ReviewGateway
	wallets *service.WalletService
	tokens  *auth.ReviewerTokens
}

func newApp(cfg *Config) (*app, error) {
	repo, err := repository.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	catalog, err := repository.NewCachedCatalog(repo, cfg.Cache.CatalogSize, cfg.Cache.CatalogTTL)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize catalog cache: %w", err)
	}

	limiter := repository.NewRateLimiter(repo.DB(), cfg.RateLimit)
	signer := verify.NewSigner([]byte(cfg.ProofToken.Secret))

	runs := service.NewRunService(repo, catalog, limiter, service.Verifiers{
		Gps:    verify.NewGpsVerifier(cfg.Verification.Gps),
		Code:   verify.NewCodeVerifier(signer),
		Social: verify.NewSocialProofVerifier(cfg.Verification.Social),
	}, cfg.Run.TTL)
	ledger := service.NewRewardLedger(repo, cfg.Ledger.MaxRetries, cfg.Ledger.Currency)
	issuer := service.NewProofTokenIssuer(repo, catalog, signer, cfg.ProofToken.TTL)

	return &app{
		cfg:     cfg,
		repo:    repo,
		catalog: catalog,
		limiter: limiter,
		runs:    runs,
		ledger:  ledger,
		issuer:  issuer,
		gateway: service.NewReviewGateway(repo, repo, ledger, runs, issuer),
		wallets: service.NewWalletService(repo, cfg.Ledger.Currency),
		tokens:  auth.NewReviewerTokens(cfg.ReviewerAuth),
	}, nil
}

func (a *app) Close() error {
	return a.repo.Close()
}
