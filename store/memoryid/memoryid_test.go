package memoryid

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextHasExpectedShape(t *testing.T) {
	g := NewGenerator()
	id := g.Next()
	assert.Len(t, id, Length)
	assert.True(t, Valid(id))
}

func TestSameMillisecondOrdersByTiebreaker(t *testing.T) {
	g := NewGenerator()
	fixed := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	first := g.at(fixed)
	second := g.at(fixed)
	third := g.at(fixed)

	assert.True(t, first < second)
	assert.True(t, second < third)
}

func TestConcurrentGenerationIsUniqueAndSortable(t *testing.T) {
	g := NewGenerator()
	const n = 500

	ids := make([]string, 0, n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	produced := 0
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if produced >= n {
					mu.Unlock()
					return
				}
				produced++
				mu.Unlock()

				id := g.Next()
				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id generated: %s", id)
		seen[id] = struct{}{}
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.ElementsMatch(t, sorted, ids, "generated ids should be unique and sortable")
}

func TestValidRejectsMalformed(t *testing.T) {
	assert.False(t, Valid("short"))
	assert.False(t, Valid("2026073012000000000x"))
	assert.True(t, Valid("20260730120000000001"))
}
