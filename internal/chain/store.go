// store.go — ChainStore: the arena that owns all chains and their indices.
// The chainID → Chain map is the sole owner; request-id, tab, and
// redirect-target entries are non-owning back-references. Keeping every index
// behind one API means index consistency is enforced here instead of being
// re-derived at each call site.
package chain

import (
	"strconv"
	"strings"
)

// anyTabID is the synthetic tab id used for redirect-target registrations
// that should match a request in any tab.
const anyTabID = -2

// ChainStore owns the chain arena and its lookup indices.
// Not thread-safe; the Tracker synchronizes all access.
type ChainStore struct {
	chains         map[string]*Chain   // chainID → chain (owning)
	byRequestID    map[string]string   // requestID → chainID
	activeByTab    map[int]string      // tabID → chainID of the tab's active chain
	redirectTarget map[string][]string // (tab,url) key → FIFO of chainIDs awaiting that URL
}

// NewChainStore returns an empty store.
func NewChainStore() *ChainStore {
	return &ChainStore{
		chains:         make(map[string]*Chain),
		byRequestID:    make(map[string]string),
		activeByTab:    make(map[int]string),
		redirectTarget: make(map[string][]string),
	}
}

// targetKey derives the pending-redirect-target lookup key.
func targetKey(tabID int, url string) string {
	return strconv.Itoa(tabID) + "|" + url
}

// Add inserts a new chain into the arena.
func (s *ChainStore) Add(c *Chain) {
	s.chains[c.ID] = c
}

// Get returns the chain by id, or nil when it has been torn down. Timer
// callbacks use this to re-check existence before acting.
func (s *ChainStore) Get(id string) *Chain {
	return s.chains[id]
}

// Len returns the number of live chains.
func (s *ChainStore) Len() int { return len(s.chains) }

// All returns the live chains in unspecified order.
func (s *ChainStore) All() []*Chain {
	out := make([]*Chain, 0, len(s.chains))
	for _, c := range s.chains {
		out = append(out, c)
	}
	return out
}

// ByRequestID resolves the chain a network request id is attached to.
func (s *ChainStore) ByRequestID(requestID string) *Chain {
	id, ok := s.byRequestID[requestID]
	if !ok {
		return nil
	}
	return s.chains[id]
}

// AttachRequestID maps a network request id to the chain. At most one live
// chain per request id: a stale mapping is overwritten.
func (s *ChainStore) AttachRequestID(c *Chain, requestID string) {
	if requestID == "" {
		return
	}
	c.RequestIDs[requestID] = struct{}{}
	s.byRequestID[requestID] = c.ID
}

// SetActiveForTab marks the chain as the tab's active chain.
func (s *ChainStore) SetActiveForTab(tabID int, c *Chain) {
	s.activeByTab[tabID] = c.ID
}

// ActiveForTab returns the tab's active chain, or nil.
func (s *ChainStore) ActiveForTab(tabID int) *Chain {
	id, ok := s.activeByTab[tabID]
	if !ok {
		return nil
	}
	return s.chains[id]
}

// RegisterRedirectTarget queues the chain under (tabID, url) and under the
// any-tab key so the next request to that URL re-attaches to it even though
// the network layer assigns a fresh request id. Queues are FIFO: the first
// registered chain wins.
func (s *ChainStore) RegisterRedirectTarget(c *Chain, tabID int, url string) {
	if url == "" {
		return
	}
	for _, key := range []string{targetKey(tabID, url), targetKey(anyTabID, url)} {
		s.redirectTarget[key] = append(s.redirectTarget[key], c.ID)
		c.redirectTargetKeys = append(c.redirectTargetKeys, key)
	}
}

// ConsumeRedirectTarget pops the first still-live chain registered for
// (tabID, url), checking the tab-scoped key before the any-tab key. A
// registration is one logical entry queued under both keys: consuming it
// through either key retires the paired entry too, so the chain is never
// handed out a second time for the same destination. Entries whose chain has
// since been torn down are skipped and discarded.
func (s *ChainStore) ConsumeRedirectTarget(tabID int, url string) *Chain {
	for _, key := range []string{targetKey(tabID, url), targetKey(anyTabID, url)} {
		queue := s.redirectTarget[key]
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			c, live := s.chains[id]
			if !live {
				continue
			}
			if len(queue) == 0 {
				delete(s.redirectTarget, key)
			} else {
				s.redirectTarget[key] = queue
			}
			s.retireRegistration(c, url, key)
			return c
		}
		if len(queue) == 0 {
			delete(s.redirectTarget, key)
		}
	}
	return nil
}

// retireRegistration removes the chain's remaining queued entries for url
// (the consumed key's sibling) and drops the pair from the chain's key list.
func (s *ChainStore) retireRegistration(c *Chain, url, consumedKey string) {
	suffix := "|" + url
	kept := c.redirectTargetKeys[:0]
	consumed := false
	for _, key := range c.redirectTargetKeys {
		if !strings.HasSuffix(key, suffix) {
			kept = append(kept, key)
			continue
		}
		if key == consumedKey && !consumed {
			consumed = true // this instance was already popped by the caller
			continue
		}
		s.dropQueuedID(key, c.ID)
	}
	c.redirectTargetKeys = kept
}

// dropQueuedID removes one queued instance of id under key.
func (s *ChainStore) dropQueuedID(key, id string) {
	queue := s.redirectTarget[key]
	for i, qid := range queue {
		if qid == id {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(s.redirectTarget, key)
	} else {
		s.redirectTarget[key] = queue
	}
}

// Remove deletes the chain and every index entry referencing it. The caller
// must have stopped the chain's timers first.
func (s *ChainStore) Remove(c *Chain) {
	for reqID := range c.RequestIDs {
		if s.byRequestID[reqID] == c.ID {
			delete(s.byRequestID, reqID)
		}
	}
	if s.activeByTab[c.TabID] == c.ID {
		delete(s.activeByTab, c.TabID)
	}
	for _, key := range c.redirectTargetKeys {
		queue := s.redirectTarget[key]
		kept := queue[:0]
		for _, id := range queue {
			if id != c.ID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(s.redirectTarget, key)
		} else {
			s.redirectTarget[key] = kept
		}
	}
	c.redirectTargetKeys = nil
	delete(s.chains, c.ID)
}
