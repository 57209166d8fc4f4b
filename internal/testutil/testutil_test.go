package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/catalog"
)

func TestSequence_MonotonicAndReset(t *testing.T) {
	var s Sequence
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())

	s.Reset()
	assert.Equal(t, int64(1), s.Next())
}

func TestSequence_ConcurrentNext(t *testing.T) {
	var s Sequence
	var wg sync.WaitGroup
	seen := make(chan int64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- s.Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, 100)
	assert.Equal(t, int64(100), s.Current())
}

func TestSequence_IDs(t *testing.T) {
	var s Sequence
	next := s.IDs("doc")
	assert.Equal(t, "doc-1", next())
	assert.Equal(t, "doc-2", next())
}

func TestFixedTokenGenerator(t *testing.T) {
	assert.Equal(t, "tok", NewFixedTokenGenerator("tok").Generate())
	assert.Equal(t, "test-activation-default", NewFixedTokenGenerator("").Generate())
}

func TestCatalog_PlacesEveryAllocation(t *testing.T) {
	c := Catalog(t)

	rels := c.Allocations()
	require.Len(t, rels, 3)

	_, isTable := Entity(t, c, EmpsAllocation).(*catalog.PhysicalTable)
	assert.True(t, isTable)
	_, isColl := Entity(t, c, OrdersAllocation).(*catalog.PhysicalCollection)
	assert.True(t, isColl)
	_, isGraph := Entity(t, c, SocialAllocation).(*catalog.PhysicalGraph)
	assert.True(t, isGraph)
}
