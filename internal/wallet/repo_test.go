package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/pagination"
)

func seedTransaction(key Key, seq int64, kind enums.TransactionType, amount string) *models.WalletTransaction {
	txn := &models.WalletTransaction{
		TenantID:    key.TenantID,
		UserID:      key.UserID,
		Sequence:    seq,
		Type:        kind,
		Amount:      dec(amount),
		Description: kind.DefaultDescription(),
		PerformedBy: uuid.New(),
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, int(seq), 0, time.UTC),
	}
	if kind.RequiresOrder() {
		orderID := uuid.New()
		txn.OrderID = &orderID
	}
	return txn
}

func TestRepositoryAppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))
	key := NewKey(uuid.New(), uuid.New())
	other := NewKey(key.TenantID, uuid.New())

	for seq, kind := range []enums.TransactionType{enums.TransactionTypeDeposit, enums.TransactionTypeCreditLimit, enums.TransactionTypePayment} {
		require.NoError(t, repo.Append(ctx, seedTransaction(key, int64(seq+1), kind, "10")))
	}
	require.NoError(t, repo.Append(ctx, seedTransaction(other, 1, enums.TransactionTypeDeposit, "99")))

	rows, err := repo.ListByUser(ctx, key)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, int64(i+1), row.Sequence)
		assert.NotEqual(t, uuid.Nil, row.ID)
	}
	assert.True(t, rows[0].Amount.Equal(dec("10")))

	latest, err := repo.LatestSequence(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)

	empty, err := repo.LatestSequence(ctx, NewKey(uuid.New(), uuid.New()))
	require.NoError(t, err)
	assert.Zero(t, empty)

	got, err := repo.Get(ctx, rows[2].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionTypePayment, got.Type)
	require.NotNil(t, got.OrderID)

	byOrder, err := repo.ListByOrder(ctx, key, *got.OrderID)
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	assert.Equal(t, got.ID, byOrder[0].ID)
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestRepositoryRejectsDuplicateSequence(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))
	key := NewKey(uuid.New(), uuid.New())

	require.NoError(t, repo.Append(ctx, seedTransaction(key, 1, enums.TransactionTypeDeposit, "10")))
	err := repo.Append(ctx, seedTransaction(key, 1, enums.TransactionTypeDeposit, "10"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeLockTimeout))

	require.NoError(t, repo.Append(ctx, seedTransaction(NewKey(key.TenantID, uuid.New()), 1, enums.TransactionTypeDeposit, "10")))
}

func TestRepositoryReportsIDCollisionAsStoreError(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))
	key := NewKey(uuid.New(), uuid.New())

	first := seedTransaction(key, 1, enums.TransactionTypeDeposit, "10")
	require.NoError(t, repo.Append(ctx, first))
	clash := seedTransaction(key, 2, enums.TransactionTypeDeposit, "10")
	clash.ID = first.ID

	err := repo.Append(ctx, clash)
	require.Error(t, err)
	assert.False(t, pkgerrors.IsCode(err, pkgerrors.CodeLockTimeout), "id collision is not a sequence race: %v", err)
}

func TestRepositoryRejectsMalformedTransactions(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))
	key := NewKey(uuid.New(), uuid.New())

	cases := map[string]func(*models.WalletTransaction){
		"unknown type":     func(txn *models.WalletTransaction) { txn.Type = "bonus" },
		"negative amount":  func(txn *models.WalletTransaction) { txn.Amount = dec("-1") },
		"missing sequence": func(txn *models.WalletTransaction) { txn.Sequence = 0 },
		"missing order":    func(txn *models.WalletTransaction) { txn.Type = enums.TransactionTypeRefund },
		"stray direction": func(txn *models.WalletTransaction) {
			d := enums.AdjustmentDirectionIncrease
			txn.AdjustmentDirection = &d
		},
		"missing direction":  func(txn *models.WalletTransaction) { txn.Type = enums.TransactionTypeAdjustment },
		"missing created at": func(txn *models.WalletTransaction) { txn.CreatedAt = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			txn := seedTransaction(key, 1, enums.TransactionTypeDeposit, "10")
			mutate(txn)
			err := repo.Append(ctx, txn)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestRepositoryListPageNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))
	key := NewKey(uuid.New(), uuid.New())
	for seq := int64(1); seq <= 5; seq++ {
		require.NoError(t, repo.Append(ctx, seedTransaction(key, seq, enums.TransactionTypeDeposit, "1")))
	}

	first, err := repo.ListPage(ctx, key, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(5), first[0].Sequence)
	assert.Equal(t, int64(4), first[1].Sequence)

	rest, err := repo.ListPage(ctx, key, &pagination.Cursor{Sequence: 4}, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(3), rest[0].Sequence)
	assert.Equal(t, int64(1), rest[2].Sequence)
}

func TestRepositoryWalletListings(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))
	tenantA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	tenantB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	user1 := uuid.MustParse("10000000-0000-0000-0000-000000000001")
	user2 := uuid.MustParse("20000000-0000-0000-0000-000000000002")

	for _, key := range []Key{NewKey(tenantA, user2), NewKey(tenantA, user1), NewKey(tenantB, user1)} {
		require.NoError(t, repo.Append(ctx, seedTransaction(key, 1, enums.TransactionTypeDeposit, "1")))
		require.NoError(t, repo.Append(ctx, seedTransaction(key, 2, enums.TransactionTypeDeposit, "1")))
	}

	users, err := repo.ListWallets(ctx, tenantA, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{user1, user2}, users)

	after, err := repo.ListWallets(ctx, tenantA, &user1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{user2}, after)

	keys, err := repo.ListAllWalletKeys(ctx, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []Key{NewKey(tenantA, user1), NewKey(tenantA, user2)}, keys)

	tail, err := repo.ListAllWalletKeys(ctx, &keys[1], 2)
	require.NoError(t, err)
	assert.Equal(t, []Key{NewKey(tenantB, user1)}, tail)
}

func TestRepositoryLockWalletIsNoopOnSQLite(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	key := NewKey(uuid.New(), uuid.New())
	require.NoError(t, repo.LockWallet(context.Background(), key))
	assert.Equal(t, advisoryKey(key), advisoryKey(NewKey(key.TenantID, key.UserID)))
	assert.NotEqual(t, advisoryKey(key), advisoryKey(NewKey(key.UserID, key.TenantID)))
}
