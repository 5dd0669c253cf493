package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/licensehub-wallet/internal/repo"
	"github.com/angelmondragon/licensehub-wallet/pkg/db"
	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/pagination"
)

var sequenceConstraint = db.Constraint{
	Name:    "uq_wallet_transactions_sequence",
	Table:   "wallet_transactions",
	Columns: []string{"tenant_id", "user_id", "sequence_no"},
}

// ErrTransactionNotFound is returned when a transaction id does not exist.
var ErrTransactionNotFound = errors.New("wallet transaction not found")

// Repository is the append-only transaction store.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockWallet(ctx context.Context, key Key) error
	Append(ctx context.Context, txn *models.WalletTransaction) error
	ListByUser(ctx context.Context, key Key) ([]models.WalletTransaction, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error)
	LatestSequence(ctx context.Context, key Key) (int64, error)
	ListPage(ctx context.Context, key Key, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error)
	ListByOrder(ctx context.Context, key Key, orderID uuid.UUID) ([]models.WalletTransaction, error)
	ListWallets(ctx context.Context, tenantID uuid.UUID, after *uuid.UUID, limit int) ([]uuid.UUID, error)
	ListAllWalletKeys(ctx context.Context, after *Key, limit int) ([]Key, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// LockWallet takes a transaction-scoped advisory lock on Postgres so writers
// on other instances queue behind this one. Other dialects rely on the
// in-process guard and the sequence constraint.
func (r *repository) LockWallet(ctx context.Context, key Key) error {
	if r.base.Dialect() != db.DriverPostgres {
		return nil
	}
	err := r.base.DB(ctx).Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(key)).Error
	if db.IsLockTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "timed out waiting for wallet row lock")
	}
	return err
}

func advisoryKey(key Key) int64 {
	return int64(xxhash.Sum64String("wallet:" + key.String()))
}

func (r *repository) Append(ctx context.Context, txn *models.WalletTransaction) error {
	if txn == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if err := checkAppendable(txn); err != nil {
		return err
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if err := r.base.DB(ctx).Create(txn).Error; err != nil {
		if db.IsUniqueViolation(err, sequenceConstraint) {
			return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "concurrent wallet write detected")
		}
		return err
	}
	return nil
}

func checkAppendable(txn *models.WalletTransaction) error {
	switch {
	case !txn.Type.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", txn.Type))
	case txn.TenantID == uuid.Nil || txn.UserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant and user are required")
	case txn.Sequence <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "sequence must be positive")
	case txn.Amount.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	case txn.Type.RequiresOrder() && (txn.OrderID == nil || *txn.OrderID == uuid.Nil):
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	case (txn.Type == enums.TransactionTypeAdjustment) != (txn.AdjustmentDirection != nil):
		return pkgerrors.New(pkgerrors.CodeValidation, "adjustment direction is required for adjustments only")
	case txn.CreatedAt.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "created at is required")
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, key Key) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.base.DB(ctx).
		Where("tenant_id = ? AND user_id = ?", key.TenantID, key.UserID).
		Order("created_at ASC").
		Order("sequence_no ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	var row models.WalletTransaction
	if err := r.base.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) LatestSequence(ctx context.Context, key Key) (int64, error) {
	var row models.WalletTransaction
	err := r.base.DB(ctx).
		Select("sequence_no").
		Where("tenant_id = ? AND user_id = ?", key.TenantID, key.UserID).
		Order("sequence_no DESC").
		Limit(1).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Sequence, nil
}

// ListPage returns history newest first. Sequence order matches
// (created_at, sequence) order within a wallet, so the cursor seeks on it alone.
func (r *repository) ListPage(ctx context.Context, key Key, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error) {
	query := r.base.DB(ctx).
		Where("tenant_id = ? AND user_id = ?", key.TenantID, key.UserID)
	if cursor != nil {
		query = query.Where("sequence_no < ?", cursor.Sequence)
	}
	var rows []models.WalletTransaction
	if err := query.
		Order("sequence_no DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByOrder(ctx context.Context, key Key, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.base.DB(ctx).
		Where("tenant_id = ? AND user_id = ? AND order_id = ?", key.TenantID, key.UserID, orderID).
		Order("sequence_no ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListWallets(ctx context.Context, tenantID uuid.UUID, after *uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.base.DB(ctx).
		Model(&models.WalletTransaction{}).
		Distinct("user_id").
		Where("tenant_id = ?", tenantID)
	if after != nil {
		query = query.Where("user_id > ?", *after)
	}
	var ids []uuid.UUID
	if err := query.
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListAllWalletKeys(ctx context.Context, after *Key, limit int) ([]Key, error) {
	query := r.base.DB(ctx).
		Model(&models.WalletTransaction{}).
		Distinct("tenant_id", "user_id")
	if after != nil {
		query = query.Where("tenant_id > ? OR (tenant_id = ? AND user_id > ?)", after.TenantID, after.TenantID, after.UserID)
	}
	var keys []Key
	if err := query.
		Order("tenant_id ASC").
		Order("user_id ASC").
		Limit(limit).
		Scan(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
