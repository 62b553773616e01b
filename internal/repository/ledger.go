package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mission_rewards/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	rewardRefConstraint  = "wallet_transactions_reward_ref"
	idempotencyKeyPKName = "idempotency_keys_pkey"
)

type wallet struct {
	UserID        int64     `db:"user_id"`
	Balance       int64     `db:"balance"`
	LockedBalance int64     `db:"locked_balance"`
	Currency      string    `db:"currency"`
	Version       int64     `db:"version"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (w *wallet) toModel() *model.Wallet {
	return &model.Wallet{
		UserID:        w.UserID,
		Balance:       w.Balance,
		LockedBalance: w.LockedBalance,
		Currency:      w.Currency,
		Version:       w.Version,
		UpdatedAt:     w.UpdatedAt,
	}
}

type walletTransaction struct {
	ID             uuid.UUID `db:"id"`
	UserID         int64     `db:"user_id"`
	Type           string    `db:"type"`
	Status         string    `db:"status"`
	Amount         int64     `db:"amount"`
	BalanceBefore  int64     `db:"balance_before"`
	BalanceAfter   int64     `db:"balance_after"`
	Currency       string    `db:"currency"`
	RefType        string    `db:"ref_type"`
	RefID          uuid.UUID `db:"ref_id"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

var transactionColumns = []string{
	"id", "user_id", "type", "status", "amount", "balance_before", "balance_after",
	"currency", "ref_type", "ref_id", "idempotency_key", "created_at",
}

func (t *walletTransaction) toModel() *model.WalletTransaction {
	return &model.WalletTransaction{
		ID:             t.ID,
		UserID:         t.UserID,
		Type:           model.TransactionType(t.Type),
		Status:         model.TransactionStatus(t.Status),
		Amount:         t.Amount,
		BalanceBefore:  t.BalanceBefore,
		BalanceAfter:   t.BalanceAfter,
		Currency:       t.Currency,
		RefType:        t.RefType,
		RefID:          t.RefID,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
	}
}

var walletColumns = []string{"user_id", "balance", "locked_balance", "currency", "version", "updated_at"}

func (r *Repository) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return r.getWallet(ctx, r.db, userID)
}

func (r *Repository) getWallet(ctx context.Context, q sqlx.QueryerContext, userID int64) (*model.Wallet, error) {
	query, args, err := squirrel.
		Select(walletColumns...).
		From("wallets").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet query: %w", err)
	}

	var w wallet
	if err := sqlx.GetContext(ctx, q, &w, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w.toModel(), nil
}

func (r *Repository) getOrCreateWallet(ctx context.Context, q sqlx.ExtContext, userID int64, currency string, now time.Time) (*model.Wallet, error) {
	query, args, err := squirrel.
		Insert("wallets").
		SetMap(map[string]interface{}{
			"user_id":        userID,
			"balance":        0,
			"locked_balance": 0,
			"currency":       currency,
			"version":        1,
			"updated_at":     now,
		}).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet insert query: %w", err)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return r.getWallet(ctx, q, userID)
}

// compareAndSwapWallet is the wallet counterpart of compareAndSwapRun.
func (r *Repository) compareAndSwapWallet(ctx context.Context, q sqlx.ExtContext, w *model.Wallet) (*model.Wallet, error) {
	next := *w
	next.Version = w.Version + 1
	next.UpdatedAt = time.Now().UTC()

	query, args, err := squirrel.
		Update("wallets").
		SetMap(map[string]interface{}{
			"balance":        next.Balance,
			"locked_balance": next.LockedBalance,
			"version":        next.Version,
			"updated_at":     next.UpdatedAt,
		}).
		Where(squirrel.Eq{"user_id": w.UserID, "version": w.Version}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet update query: %w", err)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return nil, ErrVersionConflict
	}
	return &next, nil
}

func (r *Repository) GetRewardTransaction(ctx context.Context, runID uuid.UUID) (*model.WalletTransaction, error) {
	return r.getTransaction(ctx, squirrel.Eq{
		"ref_type": model.RefTypeMissionRun,
		"ref_id":   runID,
		"type":     string(model.TransactionReward),
	})
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, error) {
	return r.getTransaction(ctx, squirrel.Eq{"id": id})
}

func (r *Repository) getTransaction(ctx context.Context, where squirrel.Sqlizer) (*model.WalletTransaction, error) {
	query, args, err := squirrel.
		Select(transactionColumns...).
		From("wallet_transactions").
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction query: %w", err)
	}

	var t walletTransaction
	if err := r.db.GetContext(ctx, &t, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t.toModel(), nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID int64, limit int) ([]*model.WalletTransaction, error) {
	query, args, err := squirrel.
		Select(transactionColumns...).
		From("wallet_transactions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transactions query: %w", err)
	}

	var rows []walletTransaction
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]*model.WalletTransaction, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (r *Repository) GetIdempotencyRecord(ctx context.Context, key string) (*model.IdempotencyRecord, error) {
	query, args, err := squirrel.
		Select("key", "run_id", "transaction_id", "created_at").
		From("idempotency_keys").
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build idempotency query: %w", err)
	}

	var rec struct {
		Key           string    `db:"key"`
		RunID         uuid.UUID `db:"run_id"`
		TransactionID uuid.UUID `db:"transaction_id"`
		CreatedAt     time.Time `db:"created_at"`
	}
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	return &model.IdempotencyRecord{
		Key:           rec.Key,
		RunID:         rec.RunID,
		TransactionID: rec.TransactionID,
		CreatedAt:     rec.CreatedAt,
	}, nil
}

func (r *Repository) SaveIdempotencyRecord(ctx context.Context, rec *model.IdempotencyRecord) error {
	return r.insertIdempotencyRecord(ctx, r.db, rec)
}

func (r *Repository) insertIdempotencyRecord(ctx context.Context, q sqlx.ExecerContext, rec *model.IdempotencyRecord) error {
	query, args, err := squirrel.
		Insert("idempotency_keys").
		SetMap(map[string]interface{}{
			"key":            rec.Key,
			"run_id":         rec.RunID,
			"transaction_id": rec.TransactionID,
			"created_at":     rec.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build idempotency insert query: %w", err)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, idempotencyKeyPKName) {
			return ErrIdempotencyKeyExists
		}
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

// ApplyReward credits the run's reward and moves the run to its approved form in a
// single transaction: the ledger row, the wallet CAS, the run CAS and the
// idempotency record either all land or none do. A wallet created here is
// denominated in currency; an existing wallet keeps its own.
func (r *Repository) ApplyReward(ctx context.Context, run *model.MissionRun, idempotencyKey, currency string, now time.Time) (*model.RewardOutcome, error) {
	var out model.RewardOutcome
	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		w, err := r.getOrCreateWallet(ctx, tx, run.UserID, currency, now)
		if err != nil {
			return err
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
			IdempotencyKey: idempotencyKey,
			CreatedAt:      now,
		}

		query, args, err := squirrel.
			Insert("wallet_transactions").
			SetMap(map[string]interface{}{
				"id":              txn.ID,
				"user_id":         txn.UserID,
				"type":            string(txn.Type),
				"status":          string(txn.Status),
				"amount":          txn.Amount,
				"balance_before":  txn.BalanceBefore,
				"balance_after":   txn.BalanceAfter,
				"currency":        txn.Currency,
				"ref_type":        txn.RefType,
				"ref_id":          txn.RefID,
				"idempotency_key": txn.IdempotencyKey,
				"created_at":      txn.CreatedAt,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build transaction insert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err, rewardRefConstraint) {
				return ErrRewardExists
			}
			return fmt.Errorf("failed to insert wallet transaction: %w", err)
		}

		credited := *w
		credited.Balance = txn.BalanceAfter
		if _, err := r.compareAndSwapWallet(ctx, tx, &credited); err != nil {
			return err
		}

		updated, err := r.compareAndSwapRun(ctx, tx, run)
		if err != nil {
			return err
		}

		err = r.insertIdempotencyRecord(ctx, tx, &model.IdempotencyRecord{
			Key:           idempotencyKey,
			RunID:         run.ID,
			TransactionID: txn.ID,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}

		out = model.RewardOutcome{Run: updated, Transaction: txn}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
