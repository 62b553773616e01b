package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"mission_rewards/internal/model"
	"mission_rewards/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory store with the same atomicity, uniqueness and
// compare-and-swap guarantees as the postgres repository.
type memStore struct {
	mu       sync.Mutex
	missions map[uuid.UUID]*model.Mission
	places   map[uuid.UUID]*model.Place
	runs     map[uuid.UUID]*model.MissionRun
	locks    map[string]uuid.UUID
	tokens   map[uuid.UUID]*model.ProofToken
	wallets  map[int64]*model.Wallet
	txns     map[uuid.UUID]*model.WalletTransaction
	rewards  map[uuid.UUID]uuid.UUID
	keys     map[string]*model.IdempotencyRecord
}

func newMemStore() *memStore {
	return &memStore{
		missions: map[uuid.UUID]*model.Mission{},
		places:   map[uuid.UUID]*model.Place{},
		runs:     map[uuid.UUID]*model.MissionRun{},
		locks:    map[string]uuid.UUID{},
		tokens:   map[uuid.UUID]*model.ProofToken{},
		wallets:  map[int64]*model.Wallet{},
		txns:     map[uuid.UUID]*model.WalletTransaction{},
		rewards:  map[uuid.UUID]uuid.UUID{},
		keys:     map[string]*model.IdempotencyRecord{},
	}
}

func (s *memStore) addMission(m *model.Mission, p *model.Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[m.ID] = m
	s.places[p.ID] = p
}

func (s *memStore) GetMission(_ context.Context, id uuid.UUID) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

func (s *memStore) GetPlace(_ context.Context, id uuid.UUID) (*model.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.places[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (s *memStore) CreateRun(_ context.Context, run *model.MissionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ActiveLockKey != nil {
		if _, held := s.locks[*run.ActiveLockKey]; held {
			return repository.ErrActiveRunExists
		}
		s.locks[*run.ActiveLockKey] = run.ID
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *memStore) GetRun(_ context.Context, id uuid.UUID) (*model.MissionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return run.Clone(), nil
}

func (s *memStore) GetActiveRun(_ context.Context, lockKey string) (*model.MissionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.locks[lockKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.runs[id].Clone(), nil
}

func (s *memStore) HasApprovedRun(_ context.Context, userID int64, missionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.UserID == userID && run.MissionID == missionID && run.Status == model.RunApproved {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CompareAndSwapRun(_ context.Context, run *model.MissionRun) (*model.MissionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRunLocked(run); err != nil {
		return nil, err
	}
	return s.swapRunLocked(run), nil
}

func (s *memStore) checkRunLocked(run *model.MissionRun) error {
	cur, ok := s.runs[run.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != run.Version {
		return repository.ErrVersionConflict
	}
	return nil
}

func (s *memStore) swapRunLocked(run *model.MissionRun) *model.MissionRun {
	cur := s.runs[run.ID]
	if cur.ActiveLockKey != nil && run.ActiveLockKey == nil {
		delete(s.locks, *cur.ActiveLockKey)
	}
	next := run.Clone()
	next.Version = run.Version + 1
	next.UpdatedAt = time.Now().UTC()
	s.runs[run.ID] = next
	return next.Clone()
}

func (s *memStore) ListRunsByStatus(_ context.Context, status model.RunStatus, limit int) ([]*model.MissionRun, error) {
	return s.list(func(r *model.MissionRun) bool { return r.Status == status }, limit), nil
}

func (s *memStore) ListExpiredRuns(_ context.Context, now time.Time, limit int) ([]*model.MissionRun, error) {
	return s.list(func(r *model.MissionRun) bool { return r.IsExpired(now) }, limit), nil
}

func (s *memStore) list(match func(*model.MissionRun) bool, limit int) []*model.MissionRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.MissionRun
	for _, run := range s.runs {
		if match(run) {
			out = append(out, run.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memStore) CreateProofToken(_ context.Context, tok *model.ProofToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tokens[tok.ID] = &cp
	return nil
}

func (s *memStore) GetProofTokenByNonce(_ context.Context, nonce string) (*model.ProofToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		if tok.Nonce == nonce {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) ConsumeTokenAndSwapRun(_ context.Context, tokenID uuid.UUID, run *model.MissionRun, now time.Time) (*model.MissionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[tokenID]
	if !ok || tok.ConsumedAt != nil || !now.Before(tok.ExpiresAt) {
		return nil, repository.ErrTokenUnavailable
	}
	if err := s.checkRunLocked(run); err != nil {
		return nil, err
	}
	at := now
	runID := run.ID
	tok.ConsumedAt = &at
	tok.ConsumedByRunID = &runID
	return s.swapRunLocked(run), nil
}

func (s *memStore) GetWallet(_ context.Context, userID int64) (*model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *memStore) ListTransactions(_ context.Context, userID int64, limit int) ([]*model.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.WalletTransaction
	for _, txn := range s.txns {
		if txn.UserID == userID {
			cp := *txn
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetIdempotencyRecord(_ context.Context, key string) (*model.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) SaveIdempotencyRecord(_ context.Context, rec *model.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[rec.Key]; ok {
		return repository.ErrIdempotencyKeyExists
	}
	cp := *rec
	s.keys[rec.Key] = &cp
	return nil
}

func (s *memStore) GetRewardTransaction(_ context.Context, runID uuid.UUID) (*model.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.rewards[runID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.txns[id]
	return &cp, nil
}

func (s *memStore) GetTransaction(_ context.Context, id uuid.UUID) (*model.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *memStore) ApplyReward(_ context.Context, run *model.MissionRun, key, currency string, now time.Time) (*model.RewardOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rewards[run.ID]; ok {
		return nil, repository.ErrRewardExists
	}
	if err := s.checkRunLocked(run); err != nil {
		return nil, err
	}
	if _, ok := s.keys[key]; ok {
		return nil, repository.ErrIdempotencyKeyExists
	}

	w, ok := s.wallets[run.UserID]
	if !ok {
		w = &model.Wallet{UserID: run.UserID, Currency: currency}
		s.wallets[run.UserID] = w
	}
	txn := &model.WalletTransaction{
		ID:             uuid.New(),
		UserID:         run.UserID,
		Type:           model.TransactionReward,
		Status:         model.TransactionApplied,
		Amount:         run.RewardAmount,
		BalanceBefore:  w.Balance,
		BalanceAfter:   w.Balance + run.RewardAmount,
		Currency:       w.Currency,
		RefType:        model.RefTypeMissionRun,
		RefID:          run.ID,
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	w.Balance = txn.BalanceAfter
	w.Version++
	w.UpdatedAt = now
	s.txns[txn.ID] = txn
	s.rewards[run.ID] = txn.ID
	s.keys[key] = &model.IdempotencyRecord{Key: key, RunID: run.ID, TransactionID: txn.ID, CreatedAt: now}

	cp := *txn
	return &model.RewardOutcome{Run: s.swapRunLocked(run), Transaction: &cp}, nil
}

func (s *memStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}
