// Package scanner ties the engine together: resolve the repository state,
// consult the cache, materialize a checkout, consolidate backend findings,
// persist, and cache.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/repo-health-scanner/pkg/cache"
	"github.com/repo-health-scanner/pkg/orchestrator"
	"github.com/repo-health-scanner/pkg/storage"
	"github.com/repo-health-scanner/pkg/telemetry"
	"github.com/repo-health-scanner/pkg/vcs"
)

type Scanner struct {
	provider vcs.SourceProvider
	orch     *orchestrator.Orchestrator
	cache    *cache.ResultCache
	store    storage.Store
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// New wires a scan service. store and metrics may be nil; cache must not be.
func New(provider vcs.SourceProvider, orch *orchestrator.Orchestrator, resultCache *cache.ResultCache, store storage.Store, metrics *telemetry.Metrics) *Scanner {
	return &Scanner{
		provider: provider,
		orch:     orch,
		cache:    resultCache,
		store:    store,
		metrics:  metrics,
		logger:   slog.Default(),
	}
}

// ScanRepository runs the full caller flow for one repository. The checkout
// directory is reclaimed on every exit path once created, including when
// consolidation fails.
func (s *Scanner) ScanRepository(ctx context.Context, owner, name, ref string, backends []string) (*orchestrator.Result, error) {
	resolvedRef, sha, err := s.provider.Resolve(ctx, owner, name, ref)
	if err != nil {
		return nil, err
	}

	if result, ok := s.cache.Get(owner, name, resolvedRef, sha); ok {
		s.logger.Info("cache hit", "repo", owner+"/"+name, "ref", resolvedRef, "commit", sha)
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return result, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	checkout, err := s.provider.Fetch(ctx, owner, name, resolvedRef)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s@%s: %w", owner, name, resolvedRef, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(checkout.Path); rmErr != nil {
			s.logger.Warn("failed to remove checkout", "path", checkout.Path, "error", rmErr)
		}
	}()

	result, err := s.orch.Consolidate(ctx, checkout.Path, backends)
	if err != nil {
		s.persist(owner, name, resolvedRef, sha, "failed", nil)
		return nil, err
	}

	s.persist(owner, name, resolvedRef, sha, "completed", result)
	s.cache.Set(owner, name, resolvedRef, sha, result)

	return result, nil
}

// persist writes the scan to durable storage. Storage is for audit and
// history only, so failures are logged and swallowed.
func (s *Scanner) persist(owner, name, ref, sha, status string, result *orchestrator.Result) {
	if s.store == nil {
		return
	}
	rec := storage.ScanRecord{
		ID:        uuid.NewString(),
		Owner:     owner,
		Name:      name,
		Ref:       ref,
		CommitSHA: sha,
		Status:    status,
		ScannedAt: time.Now().UTC(),
	}
	if err := s.store.SaveScan(rec, result); err != nil {
		s.logger.Warn("failed to persist scan", "repo", owner+"/"+name, "error", err)
	}
}
