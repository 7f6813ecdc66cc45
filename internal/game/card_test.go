package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstantiate(t *testing.T) {
	d := def("DOASD-001", "CHAMPION", "HUMAN")

	c := Instantiate(d, UUIDSource{})

	assert.Equal(t, "DOASD-001", c.ID)
	assert.NotEmpty(t, c.UID)
	assert.NotEqual(t, c.ID, c.UID)
	assert.False(t, c.Rested)
	assert.True(t, c.HasType("CHAMPION"))

	c.Types[0] = "REGALIA"
	assert.Equal(t, []string{"CHAMPION", "HUMAN"}, d.Types, "instances must not alias definition tags")
}

func TestUUIDSourceIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := UUIDSource{}.NewID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSequenceSourceIsMonotonicAndConcurrent(t *testing.T) {
	src := NewSequenceSource("game")
	assert.Equal(t, "game-1", src.NewID())
	assert.Equal(t, "game-2", src.NewID())

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := src.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestCardDefinitionValidate(t *testing.T) {
	assert.NoError(t, def("ok").Validate())

	missing := def("")
	assert.Error(t, missing.Validate())

	negative := def("neg")
	negative.Cost = -1
	assert.Error(t, negative.Validate())
}
