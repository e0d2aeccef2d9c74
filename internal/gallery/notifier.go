package gallery

import (
	"strings"
	"sync"
)

// Change tells subscribers that an owner's gallery was modified. Seq increases
// with every publish for the same owner.
type Change struct {
	OwnerID string
	Seq     uint64
}

type subscriber struct {
	ch   chan Change
	once sync.Once
}

// Notifier fans gallery changes out to per-owner subscribers. Publish never
// blocks: a subscriber that has not drained its pending change receives only
// the latest one.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
	seq  map[string]uint64
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[string]map[*subscriber]struct{}),
		seq:  make(map[string]uint64),
	}
}

// Subscribe registers for changes to ownerID. The returned cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (n *Notifier) Subscribe(ownerID string) (<-chan Change, func()) {
	ownerID = strings.TrimSpace(ownerID)
	sub := &subscriber{ch: make(chan Change, 1)}

	n.mu.Lock()
	set, ok := n.subs[ownerID]
	if !ok {
		set = make(map[*subscriber]struct{})
		n.subs[ownerID] = set
	}
	set[sub] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if set, ok := n.subs[ownerID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(n.subs, ownerID)
				}
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish signals a change for ownerID and returns the published Change.
func (n *Notifier) Publish(ownerID string) Change {
	ownerID = strings.TrimSpace(ownerID)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq[ownerID]++
	c := Change{OwnerID: ownerID, Seq: n.seq[ownerID]}
	for sub := range n.subs[ownerID] {
		select {
		case sub.ch <- c:
		default:
			// replace the stale pending change
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- c:
			default:
			}
		}
	}
	return c
}

// Subscribers reports how many subscribers ownerID has.
func (n *Notifier) Subscribers(ownerID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[strings.TrimSpace(ownerID)])
}
