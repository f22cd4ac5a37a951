package obs

import (
	"sync/atomic"
)

// Sequence hands out monotonically increasing ids starting after seed.
type Sequence struct {
	next atomic.Int64
}

// NewSequence returns a sequence whose first id is seed+1.
func NewSequence(seed int64) *Sequence {
	s := &Sequence{}
	s.next.Store(seed)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() int64 {
	if s == nil {
		return 0
	}
	return s.next.Add(1)
}

// Last returns the most recently issued id, or the seed if none was issued.
func (s *Sequence) Last() int64 {
	if s == nil {
		return 0
	}
	return s.next.Load()
}
