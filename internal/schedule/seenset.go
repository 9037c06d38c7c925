package schedule

import "sync"

// Seen-set sizing. When the set reaches maxSeen entries the oldest are
// trimmed down to keepSeen, so novelty detection is approximate over
// long uptimes: a trimmed contract reappearing later is reported as new
// again.
const (
	defaultMaxSeen  = 100_000
	defaultKeepSeen = 50_000
)

// SeenSet is a bounded set of contract IDs used to separate new listings
// from repeats across scheduled runs.
type SeenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	max   int
	keep  int
}

// NewSeenSet creates a seen-set with default bounds.
func NewSeenSet() *SeenSet {
	return newSeenSet(defaultMaxSeen, defaultKeepSeen)
}

func newSeenSet(max, keep int) *SeenSet {
	return &SeenSet{
		ids:  make(map[string]struct{}),
		max:  max,
		keep: keep,
	}
}

// Add records id and reports whether it was previously unseen.
func (s *SeenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)

	if len(s.ids) > s.max {
		drop := len(s.order) - s.keep
		for _, old := range s.order[:drop] {
			delete(s.ids, old)
		}
		s.order = append([]string(nil), s.order[drop:]...)
	}
	return true
}

// Len returns the number of IDs currently tracked.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
