package service

import (
	"context"
	"fmt"

	"github.com/Jjjbit/ledger/internal/domain"
	"github.com/Jjjbit/ledger/internal/infra/cache"
	"github.com/Jjjbit/ledger/internal/infra/observability"
	"github.com/Jjjbit/ledger/internal/port"
)

const netWorthCacheName = "networth"

// NetWorthRefresher recomputes a user's aggregate figures from the
// live account set. The user record's fields and the cache entry are
// snapshots only; every structural mutation calls Refresh, never an
// incremental patch.
type NetWorthRefresher struct {
	store   port.Store
	cache   *cache.InMemory[domain.NetWorth]
	metrics *observability.Metrics
}

func NewNetWorthRefresher(store port.Store, c *cache.InMemory[domain.NetWorth], metrics *observability.Metrics) *NetWorthRefresher {
	return &NetWorthRefresher{store: store, cache: c, metrics: metrics}
}

// Refresh recomputes, stores the snapshot on the user record and
// replaces the cache entry.
func (r *NetWorthRefresher) Refresh(ctx context.Context, userID string) (domain.NetWorth, error) {
	accounts, err := r.store.AccountsByOwner(ctx, userID)
	if err != nil {
		return domain.NetWorth{}, fmt.Errorf("load accounts: %w", err)
	}
	nw := domain.ComputeNetWorth(accounts)

	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return domain.NetWorth{}, err
	}
	u.TotalAssets = nw.TotalAssets
	u.TotalLiabilities = nw.TotalLiabilities
	u.NetAssets = nw.NetAssets
	if err := r.store.PutUser(ctx, u); err != nil {
		return domain.NetWorth{}, fmt.Errorf("save user snapshot: %w", err)
	}

	r.cache.Set(userID, nw)
	return nw, nil
}

// Get serves from the cache when possible and recomputes otherwise.
func (r *NetWorthRefresher) Get(ctx context.Context, userID string) (domain.NetWorth, error) {
	if nw, ok := r.cache.Get(userID); ok {
		r.metrics.IncrCacheHit(netWorthCacheName)
		return nw, nil
	}
	r.metrics.IncrCacheMiss(netWorthCacheName)
	return r.Refresh(ctx, userID)
}
