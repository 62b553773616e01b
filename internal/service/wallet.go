package service

import (
	"context"
	"errors"
	"fmt"

	"mission_rewards/internal/model"
	"mission_rewards/internal/repository"
)

const defaultTransactionPage = 20

type WalletService struct {
	repo     WalletRepository
	currency string
}

func NewWalletService(repo WalletRepository, currency string) *WalletService {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &WalletService{repo: repo, currency: currency}
}

// GetWallet returns the user's wallet and recent transactions. Users who were
// never rewarded get an empty wallet.
func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, []*model.WalletTransaction, error) {
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to get wallet: %w", err)
		}
		w = &model.Wallet{UserID: userID, Currency: s.currency}
	}

	txns, err := s.repo.ListTransactions(ctx, userID, defaultTransactionPage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return w, txns, nil
}
