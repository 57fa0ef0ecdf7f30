package scanner

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repo-health-scanner/pkg/backend"
	"github.com/repo-health-scanner/pkg/cache"
	"github.com/repo-health-scanner/pkg/orchestrator"
	"github.com/repo-health-scanner/pkg/storage"
	"github.com/repo-health-scanner/pkg/vcs"
)

type fakeProvider struct {
	ref        string
	sha        string
	resolveErr error
	fetchErr   error

	fetchCalls int
	checkouts  []string
}

func (p *fakeProvider) Resolve(ctx context.Context, owner, name, ref string) (string, string, error) {
	if p.resolveErr != nil {
		return "", "", p.resolveErr
	}
	return p.ref, p.sha, nil
}

func (p *fakeProvider) Fetch(ctx context.Context, owner, name, ref string) (*vcs.Checkout, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	p.fetchCalls++
	dir, err := os.MkdirTemp("", "fake-checkout-*")
	if err != nil {
		return nil, err
	}
	p.checkouts = append(p.checkouts, dir)
	return &vcs.Checkout{Path: dir, Ref: p.ref, CommitSHA: p.sha}, nil
}

type recordingStore struct {
	records []storage.ScanRecord
	results []*orchestrator.Result
	saveErr error
}

func (s *recordingStore) Close() error { return nil }
func (s *recordingStore) SaveScan(rec storage.ScanRecord, result *orchestrator.Result) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, rec)
	s.results = append(s.results, result)
	return nil
}
func (s *recordingStore) GetScan(id string) (storage.ScanRecord, *orchestrator.Result, error) {
	return storage.ScanRecord{}, nil, nil
}
func (s *recordingStore) ListRecent(owner, name string, limit int) ([]storage.ScanRecord, error) {
	return nil, nil
}

type stubBackend struct {
	name    string
	outcome backend.Outcome
}

func (b *stubBackend) Name() string { return b.name }
func (b *stubBackend) Scan(ctx context.Context, repoPath string) backend.Outcome {
	return b.outcome
}

func newService(provider *fakeProvider, store storage.Store, backends ...backend.Backend) *Scanner {
	orch := orchestrator.New(backend.NewRegistry(backends...), nil)
	return New(provider, orch, cache.New(time.Minute, 10), store, nil)
}

func completedBackend(name string) *stubBackend {
	return &stubBackend{name: name, outcome: backend.Outcome{
		Status: backend.StatusCompleted,
		Vulnerabilities: []backend.Vulnerability{{
			PackageName: "lodash", PackageVersion: "4.17.20", Ecosystem: "npm",
			ID: "GHSA-x", CVE: "CVE-2021-23337", Severity: backend.SeverityHigh, Source: name,
		}},
	}}
}

func TestScanRepositoryFullFlow(t *testing.T) {
	provider := &fakeProvider{ref: "main", sha: "abc123"}
	store := &recordingStore{}
	svc := newService(provider, store, completedBackend("osv"))

	result, err := svc.ScanRepository(context.Background(), "octo", "repo", "", nil)
	require.NoError(t, err)
	require.Len(t, result.Vulnerabilities, 1)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, "octo", rec.Owner)
	assert.Equal(t, "main", rec.Ref)
	assert.Equal(t, "abc123", rec.CommitSHA)
	assert.Equal(t, "completed", rec.Status)
	assert.NotEmpty(t, rec.ID)

	require.Len(t, provider.checkouts, 1)
	_, statErr := os.Stat(provider.checkouts[0])
	assert.True(t, os.IsNotExist(statErr), "checkout directory must be reclaimed after the scan")
}

func TestScanRepositoryCacheHit(t *testing.T) {
	provider := &fakeProvider{ref: "main", sha: "abc123"}
	svc := newService(provider, nil, completedBackend("osv"))

	first, err := svc.ScanRepository(context.Background(), "octo", "repo", "", nil)
	require.NoError(t, err)

	second, err := svc.ScanRepository(context.Background(), "octo", "repo", "", nil)
	require.NoError(t, err)

	assert.Same(t, first, second, "identical repository state must hit the cache")
	assert.Equal(t, 1, provider.fetchCalls, "a cache hit performs no checkout")
}

func TestScanRepositoryResolveError(t *testing.T) {
	provider := &fakeProvider{resolveErr: vcs.ErrRepoNotFound}
	svc := newService(provider, nil, completedBackend("osv"))

	_, err := svc.ScanRepository(context.Background(), "octo", "gone", "", nil)
	assert.ErrorIs(t, err, vcs.ErrRepoNotFound)
	assert.Zero(t, provider.fetchCalls)
}

func TestScanRepositoryConsolidationErrorCleansUp(t *testing.T) {
	provider := &fakeProvider{ref: "main", sha: "abc123"}
	store := &recordingStore{}
	svc := newService(provider, store, completedBackend("osv"))

	// Unknown backend selection fails the consolidation itself.
	_, err := svc.ScanRepository(context.Background(), "octo", "repo", "", []string{"trivy"})
	require.Error(t, err)

	require.Len(t, provider.checkouts, 1)
	_, statErr := os.Stat(provider.checkouts[0])
	assert.True(t, os.IsNotExist(statErr), "checkout must be reclaimed on the error path too")

	require.Len(t, store.records, 1)
	assert.Equal(t, "failed", store.records[0].Status)
	assert.Nil(t, store.results[0])
}

func TestScanRepositoryStoreFailureIsNotFatal(t *testing.T) {
	provider := &fakeProvider{ref: "main", sha: "abc123"}
	store := &recordingStore{saveErr: assert.AnError}
	svc := newService(provider, store, completedBackend("osv"))

	result, err := svc.ScanRepository(context.Background(), "octo", "repo", "", nil)
	require.NoError(t, err, "persistence is audit-only; its failure never fails the scan")
	assert.NotNil(t, result)
}

func TestScanRepositoryWithoutStore(t *testing.T) {
	provider := &fakeProvider{ref: "main", sha: "abc123"}
	svc := newService(provider, nil, completedBackend("osv"))

	result, err := svc.ScanRepository(context.Background(), "octo", "repo", "", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}
