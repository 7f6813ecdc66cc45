package game

import (
	"math/rand/v2"
	"sync"
)

// Shuffler permutes n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// NewRandomShuffler shuffles from the process-wide random source.
func NewRandomShuffler() Shuffler {
	return globalShuffler{}
}

// lockedRand guards a seeded generator; *rand.Rand is not safe for concurrent use.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rng.Shuffle(n, swap)
}

// NewSeededShuffler returns a reproducible shuffler for replays and tests.
func NewSeededShuffler(seed uint64) Shuffler {
	return &lockedRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// shuffled permutes cards in place (Fisher-Yates via rand.Shuffle) and returns them.
func shuffled(cards []CardInstance, s Shuffler) []CardInstance {
	s.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return cards
}
