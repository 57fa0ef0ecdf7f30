package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repo-health-scanner/pkg/backend"
	"github.com/repo-health-scanner/pkg/orchestrator"
)

func sampleResult(marker string) *orchestrator.Result {
	return &orchestrator.Result{
		Backends: map[string]orchestrator.BackendReport{
			"osv": {Status: backend.StatusCompleted, VulnerabilitiesFound: 1, ExecutionTimeMS: 42},
		},
		Vulnerabilities: []backend.Vulnerability{{PackageName: marker}},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := New(time.Minute, 10)
	stored := sampleResult("lodash")

	c.Set("octo", "repo", "main", "abc123", stored)

	got, ok := c.Get("octo", "repo", "main", "abc123")
	require.True(t, ok)
	assert.Same(t, stored, got, "the exact stored value comes back")
}

func TestCacheKeyComponents(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("octo", "repo", "main", "abc123", sampleResult("x"))

	cases := [][4]string{
		{"other", "repo", "main", "abc123"},
		{"octo", "other", "main", "abc123"},
		{"octo", "repo", "dev", "abc123"},
		{"octo", "repo", "main", "def456"},
	}
	for _, key := range cases {
		_, ok := c.Get(key[0], key[1], key[2], key[3])
		assert.False(t, ok, "changing any key component must miss: %v", key)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := New(50*time.Millisecond, 10)
	c.Set("octo", "repo", "main", "abc123", sampleResult("x"))

	_, ok := c.Get("octo", "repo", "main", "abc123")
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)

	_, ok = c.Get("octo", "repo", "main", "abc123")
	assert.False(t, ok, "expired entries read as misses without explicit invalidation")
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := New(time.Minute, 10)
	c.Set("octo", "repo", "main", "abc123", sampleResult("x"))
	c.Set("octo", "repo", "main", "def456", sampleResult("y"))

	c.Invalidate("octo", "repo", "main", "abc123")
	_, ok := c.Get("octo", "repo", "main", "abc123")
	assert.False(t, ok)
	_, ok = c.Get("octo", "repo", "main", "def456")
	assert.True(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestCacheCapacityBound(t *testing.T) {
	c := New(time.Minute, 3)
	for i := 0; i < 10; i++ {
		c.Set("octo", "repo", "main", fmt.Sprintf("sha%d", i), sampleResult("x"))
	}
	assert.LessOrEqual(t, c.Len(), 3)

	// The most recent insertions survive.
	_, ok := c.Get("octo", "repo", "main", "sha9")
	assert.True(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(time.Minute, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sha := fmt.Sprintf("sha%d", j%10)
				c.Set("octo", "repo", "main", sha, sampleResult("x"))
				c.Get("octo", "repo", "main", sha)
				if j%25 == 0 {
					c.Invalidate("octo", "repo", "main", sha)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestCacheDefaults(t *testing.T) {
	c := New(0, 0)
	c.Set("octo", "repo", "main", "abc", sampleResult("x"))
	_, ok := c.Get("octo", "repo", "main", "abc")
	assert.True(t, ok)
}
