package rpc

import (
	"sync"
)

// inflightEntry correlates one forwarded request with its waiting caller.
// The continuation channel is the single-shot delivery slot: a value is the
// response, a close without value means no response will be delivered (the
// serving peer disappeared, the waiter dropped, or the entry was forgotten
// or replaced by a duplicate id).
type inflightEntry struct {
	server  string
	waiter  string
	ch      chan *Message
	discard bool
}

// Inflight tracks forwarded requests between the peer serving them and the
// peer waiting on them, so that responses can be delivered and both kinds
// of disconnect races resolved.
type Inflight struct {
	mtx     sync.Mutex
	entries map[string]*inflightEntry
	serving map[string][]string
	waiting map[string][]string
}

// NewInflight returns an empty table.
func NewInflight() *Inflight {
	return &Inflight{
		entries: make(map[string]*inflightEntry),
		serving: make(map[string][]string),
		waiting: make(map[string][]string),
	}
}

// Wait registers msgID as in flight from waiter to server and returns the
// continuation to receive the response on. There is exactly one
// continuation per msg_id; a duplicate id replaces the stale entry.
func (t *Inflight) Wait(msgID string, waiter string, server string) <-chan *Message {
	e := &inflightEntry{
		server: server,
		waiter: waiter,
		ch:     make(chan *Message, 1),
	}
	t.mtx.Lock()
	if old, ok := t.entries[msgID]; ok {
		t.detach(msgID, old)
		close(old.ch)
	}
	t.entries[msgID] = e
	t.serving[server] = append(t.serving[server], msgID)
	t.waiting[waiter] = append(t.waiting[waiter], msgID)
	t.mtx.Unlock()
	return e.ch
}

// Complete delivers a response to the waiting continuation. It reports
// whether msgID was known; a response whose waiter has dropped is consumed
// silently.
func (t *Inflight) Complete(msgID string, resp *Message) bool {
	t.mtx.Lock()
	e, ok := t.entries[msgID]
	if ok {
		t.detach(msgID, e)
	}
	t.mtx.Unlock()
	if !ok {
		return false
	}
	if !e.discard {
		e.ch <- resp
	}
	close(e.ch)
	return true
}

// Forget removes the entry without delivering anything, closing its
// continuation.
func (t *Inflight) Forget(msgID string) {
	t.mtx.Lock()
	e, ok := t.entries[msgID]
	if ok {
		t.detach(msgID, e)
	}
	t.mtx.Unlock()
	if ok {
		close(e.ch)
	}
}

// Len returns the number of in-flight entries.
func (t *Inflight) Len() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return len(t.entries)
}

// DropClient removes every entry the given peer is involved in. Requests it
// was serving complete their waiters with a closed continuation (a
// disconnect error); requests it was waiting on stay tracked with a no-op
// slot so the eventual answer is discarded silently.
func (t *Inflight) DropClient(addr string) {
	t.mtx.Lock()
	served := t.serving[addr]
	delete(t.serving, addr)
	var toClose []*inflightEntry
	for _, id := range served {
		if e, ok := t.entries[id]; ok {
			delete(t.entries, id)
			t.waiting[e.waiter] = removeString(t.waiting[e.waiter], id)
			if len(t.waiting[e.waiter]) == 0 {
				delete(t.waiting, e.waiter)
			}
			toClose = append(toClose, e)
		}
	}
	waited := t.waiting[addr]
	delete(t.waiting, addr)
	for _, id := range waited {
		if e, ok := t.entries[id]; ok {
			e.discard = true
		}
	}
	t.mtx.Unlock()

	for _, e := range toClose {
		close(e.ch)
	}
}

// detach removes the entry's secondary index references; the caller holds
// the lock and owns the entries map removal.
func (t *Inflight) detach(msgID string, e *inflightEntry) {
	delete(t.entries, msgID)
	t.serving[e.server] = removeString(t.serving[e.server], msgID)
	if len(t.serving[e.server]) == 0 {
		delete(t.serving, e.server)
	}
	t.waiting[e.waiter] = removeString(t.waiting[e.waiter], msgID)
	if len(t.waiting[e.waiter]) == 0 {
		delete(t.waiting, e.waiter)
	}
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
