package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
	"github.com/angelmondragon/licensehub-wallet/pkg/metrics"
	"github.com/angelmondragon/licensehub-wallet/pkg/pagination"
)

const (
	opDeposit       = "deposit"
	opCreditLimit   = "credit_limit"
	opCreditPayment = "credit_payment"
	opRefund        = "refund"
	opAdjustment    = "adjustment"
	opPayment       = "payment"
	opReconcile     = "reconcile"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the wallet ledger: guarded writes plus derived reads.
type Service interface {
	Deposit(ctx context.Context, input DepositInput) (*OperationResult, error)
	SetCreditLimit(ctx context.Context, input CreditLimitInput) (*OperationResult, error)
	RecordCreditPayment(ctx context.Context, input CreditPaymentInput) (*OperationResult, error)
	Refund(ctx context.Context, input RefundInput) (*OperationResult, error)
	Adjust(ctx context.Context, input AdjustmentInput) (*OperationResult, error)
	Pay(ctx context.Context, input PaymentInput) (*PaymentResult, error)

	Balance(ctx context.Context, tenantID, userID uuid.UUID) (*Balance, error)
	History(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	Transaction(ctx context.Context, tenantID, userID, transactionID uuid.UUID) (*models.WalletTransaction, error)
	ListWallets(ctx context.Context, tenantID uuid.UUID, params pagination.Params) (*WalletPage, error)
	Reconcile(ctx context.Context, tenantID, userID uuid.UUID) (*ReconcileResult, error)
}

// ServiceParams wires the wallet service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Cache   BalanceCache
	Guard   Guard
	Logger  *logger.Logger
	Metrics *metrics.WalletMetrics
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	cache   BalanceCache
	guard   Guard
	logg    *logger.Logger
	metrics *metrics.WalletMetrics
	clock   func() time.Time
	fills   singleflight.Group
}

// NewService builds the wallet service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("wallet guard required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cache := params.Cache
	if cache == nil {
		cache = NoopBalanceCache{}
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		cache:   cache,
		guard:   params.Guard,
		logg:    params.Logger,
		metrics: params.Metrics,
		clock:   clock,
	}, nil
}

func (s *service) Deposit(ctx context.Context, input DepositInput) (*OperationResult, error) {
	key, err := walletKey(input.TenantID, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkActor(input.AdminID); err != nil {
		return nil, err
	}
	if err := checkAmount("amount", input.Amount, false); err != nil {
		return nil, err
	}
	return s.write(ctx, opDeposit, key, func(ctx context.Context, repo Repository, current Balance) (*models.WalletTransaction, error) {
		return newTransaction(enums.TransactionTypeDeposit, input.Amount, input.Description, input.AdminID), nil
	})
}

func (s *service) SetCreditLimit(ctx context.Context, input CreditLimitInput) (*OperationResult, error) {
	key, err := walletKey(input.TenantID, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkActor(input.AdminID); err != nil {
		return nil, err
	}
	if err := checkAmount("limit", input.Limit, true); err != nil {
		return nil, err
	}
	return s.write(ctx, opCreditLimit, key, func(ctx context.Context, repo Repository, current Balance) (*models.WalletTransaction, error) {
		return newTransaction(enums.TransactionTypeCreditLimit, input.Limit, input.Description, input.AdminID), nil
	})
}

func (s *service) RecordCreditPayment(ctx context.Context, input CreditPaymentInput) (*OperationResult, error) {
	key, err := walletKey(input.TenantID, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkActor(input.AdminID); err != nil {
		return nil, err
	}
	if err := checkAmount("amount", input.Amount, false); err != nil {
		return nil, err
	}
	return s.write(ctx, opCreditPayment, key, func(ctx context.Context, repo Repository, current Balance) (*models.WalletTransaction, error) {
		return newTransaction(enums.TransactionTypeCreditPayment, input.Amount, input.Description, input.AdminID), nil
	})
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*OperationResult, error) {
	key, err := walletKey(input.TenantID, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkActor(input.AdminID); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, validationError("order id is required")
	}
	if err := checkAmount("amount", input.Amount, false); err != nil {
		return nil, err
	}
	return s.write(ctx, opRefund, key, func(ctx context.Context, repo Repository, current Balance) (*models.WalletTransaction, error) {
		related, err := repo.ListByOrder(ctx, key, input.OrderID)
		if err != nil {
			return nil, storeError(err, "load order transactions")
		}
		paid, refunded := orderTotals(related)
		if paid.IsPositive() && refunded.Add(input.Amount).GreaterThan(paid) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds the amount paid for the order").
				WithDetails(map[string]any{
					"paid":     paid.StringFixed(2),
					"refunded": refunded.StringFixed(2),
				})
		}
		txn := newTransaction(enums.TransactionTypeRefund, input.Amount, input.Description, input.AdminID)
		orderID := input.OrderID
		txn.OrderID = &orderID
		return txn, nil
	})
}

func (s *service) Adjust(ctx context.Context, input AdjustmentInput) (*OperationResult, error) {
	key, err := walletKey(input.TenantID, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := checkActor(input.AdminID); err != nil {
		return nil, err
	}
	if err := checkAmount("amount", input.Amount, false); err != nil {
		return nil, err
	}
	if !input.Direction.IsValid() {
		return nil, validationError("adjustment direction must be increase or decrease")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, validationError("description is required for adjustments")
	}
	return s.write(ctx, opAdjustment, key, func(ctx context.Context, repo Repository, current Balance) (*models.WalletTransaction, error) {
		if input.Direction == enums.AdjustmentDirectionDecrease && input.Amount.GreaterThan(current.DepositBalance) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "decrease exceeds the deposit balance").
				WithDetails(map[string]any{"deposit_balance": current.DepositBalance.StringFixed(2)})
		}
		txn := newTransaction(enums.TransactionTypeAdjustment, input.Amount, input.Description, input.AdminID)
		direction := input.Direction
		txn.AdjustmentDirection = &direction
		return txn, nil
	})
}

// decideFunc inspects the locked wallet and returns the transaction to
// append, or nil to leave the wallet untouched.
type decideFunc func(ctx context.Context, repo Repository, current Balance) (*models.WalletTransaction, error)

func (s *service) write(ctx context.Context, op string, key Key, decide decideFunc) (*OperationResult, error) {
	txn, balance, err := s.mutate(ctx, op, key, decide)
	if err != nil {
		return nil, err
	}
	return &OperationResult{Transaction: *txn, Balance: balance}, nil
}

// mutate runs one guarded read-decide-append cycle. The returned transaction
// is nil when decide chose not to write.
func (s *service) mutate(ctx context.Context, op string, key Key, decide decideFunc) (txn *models.WalletTransaction, balance Balance, err error) {
	start := s.clock()
	ctx = s.logg.WithField(s.logg.WithWallet(ctx, key.TenantID.String(), key.UserID.String()), "event", "wallet."+op)
	defer func() {
		s.metrics.ObserveOperation(op, outcomeFor(err), time.Since(start))
		if err != nil {
			if outcomeFor(err) == metrics.OutcomeRejected {
				s.logg.Warn(ctx, err.Error())
			} else {
				s.logg.Error(ctx, "wallet operation failed", err)
			}
		}
	}()

	release, err := s.acquire(ctx, key)
	if err != nil {
		return nil, Balance{}, err
	}
	defer release()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockWallet(ctx, key); err != nil {
			return storeError(err, "lock wallet")
		}
		history, err := loadHistory(ctx, repo, key)
		if err != nil {
			return err
		}
		current := Derive(history)

		next, err := decide(ctx, repo, current)
		if err != nil {
			return err
		}
		if next == nil {
			balance = current
			return nil
		}

		next.TenantID = key.TenantID
		next.UserID = key.UserID
		next.Sequence = nextSequence(history)
		next.CreatedAt = s.stamp(history)
		if err := repo.Append(ctx, next); err != nil {
			return storeError(err, "append wallet transaction")
		}
		balance = Derive(append(history, *next))
		txn = next
		return nil
	})
	if err != nil {
		return nil, Balance{}, err
	}

	if txn != nil {
		s.storeBalance(context.WithoutCancel(ctx), key, balance)
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"transaction_id": txn.ID.String(),
			"sequence":       txn.Sequence,
			"amount":         txn.Amount.StringFixed(2),
		}), "wallet transaction appended")
	}
	return txn, balance, nil
}

// storeBalance writes the cached projection and drops the entry when the
// write fails.
func (s *service) storeBalance(ctx context.Context, key Key, balance Balance) {
	err := s.cache.Put(ctx, key, balance)
	if err == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "balance cache write failed")
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "balance cache invalidate failed")
	}
}

func loadHistory(ctx context.Context, repo Repository, key Key) ([]models.WalletTransaction, error) {
	history, err := repo.ListByUser(ctx, key)
	if err != nil {
		return nil, storeError(err, "load wallet history")
	}
	if err := CheckHistory(history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *service) acquire(ctx context.Context, key Key) (func(), error) {
	waitStart := time.Now()
	release, err := s.guard.Acquire(ctx, key.String())
	s.metrics.ObserveLockWait(time.Since(waitStart))
	return release, err
}

// stamp returns a creation time that never precedes the wallet's last transaction.
func (s *service) stamp(history []models.WalletTransaction) time.Time {
	now := s.clock().UTC().Truncate(time.Microsecond)
	for _, txn := range history {
		if last := txn.CreatedAt.UTC(); now.Before(last) {
			now = last
		}
	}
	return now
}

func nextSequence(history []models.WalletTransaction) int64 {
	var highest int64
	for _, txn := range history {
		if txn.Sequence > highest {
			highest = txn.Sequence
		}
	}
	return highest + 1
}

func newTransaction(kind enums.TransactionType, amount decimal.Decimal, description string, actor uuid.UUID) *models.WalletTransaction {
	description = strings.TrimSpace(description)
	if description == "" {
		description = kind.DefaultDescription()
	}
	return &models.WalletTransaction{
		ID:          uuid.New(),
		Type:        kind,
		Amount:      amount.Round(2),
		Description: description,
		PerformedBy: actor,
	}
}

func orderTotals(related []models.WalletTransaction) (paid, refunded decimal.Decimal) {
	for _, txn := range related {
		switch txn.Type {
		case enums.TransactionTypePayment:
			paid = paid.Add(txn.Amount)
		case enums.TransactionTypeRefund:
			refunded = refunded.Add(txn.Amount)
		}
	}
	return paid, refunded
}

func walletKey(tenantID, userID uuid.UUID) (Key, error) {
	if tenantID == uuid.Nil {
		return Key{}, validationError("tenant id is required")
	}
	if userID == uuid.Nil {
		return Key{}, validationError("user id is required")
	}
	return NewKey(tenantID, userID), nil
}

func checkActor(actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return validationError("performing actor is required")
	}
	return nil
}

func (s *service) Balance(ctx context.Context, tenantID, userID uuid.UUID) (*Balance, error) {
	key, err := walletKey(tenantID, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestSequence(ctx, key)
	if err != nil {
		return nil, storeError(err, "load latest sequence")
	}

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithWallet(ctx, key.TenantID.String(), key.UserID.String()), "error", err.Error()), "balance cache read failed")
		cached = nil
	}
	switch {
	case cached != nil && cached.LastSequence == latest:
		s.metrics.IncCache("hit")
		return cached, nil
	case cached != nil:
		s.metrics.IncCache("stale")
	default:
		s.metrics.IncCache("miss")
	}

	// the shared fill outlives any single caller; each caller waits on its own context
	fillCtx := context.WithoutCancel(ctx)
	var balance Balance
	select {
	case <-ctx.Done():
		return nil, storeError(ctx.Err(), "load wallet balance")
	case res := <-s.fills.DoChan(key.String(), func() (any, error) {
		return s.fill(fillCtx, key)
	}):
		if res.Err != nil {
			return nil, res.Err
		}
		balance = res.Val.(Balance)
	}
	if balance.LastSequence < latest {
		// joined a fill that started before our sequence read
		if balance, err = s.fill(ctx, key); err != nil {
			return nil, err
		}
	}
	return &balance, nil
}

func (s *service) fill(ctx context.Context, key Key) (Balance, error) {
	history, err := loadHistory(ctx, s.repo, key)
	if err != nil {
		return Balance{}, err
	}
	balance := Derive(history)
	s.storeBalance(ctx, key, balance)
	return balance, nil
}

func (s *service) History(ctx context.Context, tenantID, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	key, err := walletKey(tenantID, userID)
	if err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, validationError(err.Error())
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListPage(ctx, key, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, storeError(err, "list wallet history")
	}
	page := &HistoryPage{Items: []BalanceStep{}}
	rows, more := pagination.Trim(rows, limit)
	if more {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, Sequence: last.Sequence})
	}
	if len(rows) == 0 {
		return page, nil
	}

	history, err := loadHistory(ctx, s.repo, key)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		page.Items = append(page.Items, BalanceStep{
			Transaction:  row,
			BalanceAfter: BalanceAt(history, row.Sequence),
		})
	}
	return page, nil
}

func (s *service) Transaction(ctx context.Context, tenantID, userID, transactionID uuid.UUID) (*models.WalletTransaction, error) {
	if _, err := walletKey(tenantID, userID); err != nil {
		return nil, err
	}
	if transactionID == uuid.Nil {
		return nil, validationError("transaction id is required")
	}
	txn, err := s.repo.Get(ctx, transactionID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, storeError(err, "load wallet transaction")
	}
	if txn.TenantID != tenantID || txn.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *service) ListWallets(ctx context.Context, tenantID uuid.UUID, params pagination.Params) (*WalletPage, error) {
	if tenantID == uuid.Nil {
		return nil, validationError("tenant id is required")
	}
	after, err := pagination.ParseKeyCursor(params.Cursor)
	if err != nil {
		return nil, validationError(err.Error())
	}
	limit := pagination.NormalizeLimit(params.Limit)

	ids, err := s.repo.ListWallets(ctx, tenantID, after, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, storeError(err, "list wallets")
	}
	page := &WalletPage{Items: []Summary{}}
	ids, more := pagination.Trim(ids, limit)
	if more {
		page.NextCursor = pagination.EncodeKeyCursor(ids[len(ids)-1])
	}
	for _, userID := range ids {
		balance, err := s.Balance(ctx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, Summary{Key: NewKey(tenantID, userID), Balance: *balance})
	}
	return page, nil
}

// Reconcile replays the wallet from scratch under the guard and overwrites
// the cached projection when it disagrees.
func (s *service) Reconcile(ctx context.Context, tenantID, userID uuid.UUID) (result *ReconcileResult, err error) {
	key, err := walletKey(tenantID, userID)
	if err != nil {
		return nil, err
	}
	start := s.clock()
	ctx = s.logg.WithField(s.logg.WithWallet(ctx, key.TenantID.String(), key.UserID.String()), "event", "wallet."+opReconcile)
	defer func() {
		s.metrics.ObserveOperation(opReconcile, outcomeFor(err), time.Since(start))
	}()

	release, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	var balance Balance
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockWallet(ctx, key); err != nil {
			return storeError(err, "lock wallet")
		}
		history, err := loadHistory(ctx, repo, key)
		if err != nil {
			return err
		}
		balance = Derive(history)
		return nil
	})
	if err != nil {
		return nil, err
	}

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read balance cache")
	}
	result = &ReconcileResult{Key: key, Balance: balance, Cached: cached}
	if cached != nil && cached.Equal(balance) {
		return result, nil
	}
	result.Drifted = cached != nil
	if err := s.cache.Put(ctx, key, balance); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write balance cache")
	}
	if result.Drifted {
		result.Repaired = true
		s.metrics.IncDrift()
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"cached_sequence":  cached.LastSequence,
			"derived_sequence": balance.LastSequence,
		}), "cached balance drifted from replay; repaired")
	}
	return result, nil
}
