package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/licensehub-wallet/internal/wallet"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

const defaultReconcileBatchSize = 200

// WalletReconcileJobParams configure the wallet reconcile job.
type WalletReconcileJobParams struct {
	Logger    *logger.Logger
	Keys      walletKeyLister
	Wallets   walletReconciler
	BatchSize int
	// Timeout bounds one full pass; zero leaves it to the cycle context.
	Timeout time.Duration
}

type walletKeyLister interface {
	ListAllWalletKeys(ctx context.Context, after *wallet.Key, limit int) ([]wallet.Key, error)
}

type walletReconciler interface {
	Reconcile(ctx context.Context, tenantID, userID uuid.UUID) (*wallet.ReconcileResult, error)
}

// NewWalletReconcileJob replays every wallet and repairs drifted balance caches.
func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Keys == nil {
		return nil, fmt.Errorf("wallet key lister required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet reconciler required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &walletReconcileJob{
		logg:    params.Logger,
		keys:    params.Keys,
		wallets: params.Wallets,
		batch:   batch,
		timeout: params.Timeout,
	}, nil
}

type walletReconcileJob struct {
	logg    *logger.Logger
	keys    walletKeyLister
	wallets walletReconciler
	batch   int
	timeout time.Duration
}

func (j *walletReconcileJob) Name() string { return "wallet-reconcile" }

func (j *walletReconcileJob) Timeout() time.Duration { return j.timeout }

func (j *walletReconcileJob) Run(ctx context.Context) error {
	var (
		after    *wallet.Key
		scanned  int
		drifted  int
		failures error
	)
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(failures, err)
		}
		keys, err := j.keys.ListAllWalletKeys(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(failures, fmt.Errorf("list wallet keys: %w", err))
		}
		for _, key := range keys {
			scanned++
			result, err := j.wallets.Reconcile(ctx, key.TenantID, key.UserID)
			if err != nil {
				failures = multierr.Append(failures, fmt.Errorf("reconcile %s: %w", key, err))
				continue
			}
			if result.Drifted {
				drifted++
			}
		}
		if len(keys) < j.batch {
			break
		}
		last := keys[len(keys)-1]
		after = &last
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"wallets_scanned": scanned,
		"wallets_drifted": drifted,
		"failures":        len(multierr.Errors(failures)),
	})
	j.logg.Info(logCtx, "wallet reconcile complete")
	return failures
}
