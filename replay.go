package debrisguard

import "math/rand"

// Transition is one replayable experience of the avoidance agent.
type Transition struct {
	State     []float64
	Action    Action
	Reward    float64
	NextState []float64
	Terminal  bool
}

// ReplayBuffer is a bounded ring of past transitions. When full, the oldest
// entry is evicted.
type ReplayBuffer struct {
	entries []Transition
	next    int
	full    bool
}

// NewReplayBuffer returns a buffer holding at most capacity transitions.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ReplayBuffer{entries: make([]Transition, capacity)}
}

// Add stores a transition, evicting the oldest when at capacity.
func (b *ReplayBuffer) Add(t Transition) {
	b.entries[b.next] = t
	b.next++
	if b.next == len(b.entries) {
		b.next = 0
		b.full = true
	}
}

// Len returns the number of stored transitions.
func (b *ReplayBuffer) Len() int {
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Cap returns the buffer capacity.
func (b *ReplayBuffer) Cap() int {
	return len(b.entries)
}

// Sample draws n transitions uniformly with replacement.
func (b *ReplayBuffer) Sample(n int, rng *rand.Rand) []Transition {
	size := b.Len()
	if size == 0 {
		return nil
	}
	out := make([]Transition, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[rng.Intn(size)]
	}
	return out
}

// Snapshot returns the stored transitions oldest-first, for checkpointing.
func (b *ReplayBuffer) Snapshot() []Transition {
	size := b.Len()
	out := make([]Transition, 0, size)
	if b.full {
		out = append(out, b.entries[b.next:]...)
	}
	out = append(out, b.entries[:b.next]...)
	return out
}

// Restore refills the buffer from a snapshot, keeping only the newest entries
// when the snapshot exceeds capacity.
func (b *ReplayBuffer) Restore(transitions []Transition) {
	b.next = 0
	b.full = false
	if excess := len(transitions) - len(b.entries); excess > 0 {
		transitions = transitions[excess:]
	}
	for _, t := range transitions {
		b.Add(t)
	}
}
