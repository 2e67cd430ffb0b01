package conn

import "sync"

// Registry tracks every open Closure with a dual index — by remote
// address (for routing an inbound read to its connection) and by
// session ID (for admin/diagnostic lookups) — adapted from the
// teacher's session.Manager (byVirtualIP/byClientID).
type Registry struct {
	byAddr sync.Map // string (remote addr) -> *Closure
	byID   sync.Map // string (session ID)   -> *Closure
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers c under both its remote address and its ID.
func (r *Registry) Add(addr string, c *Closure) {
	r.byAddr.Store(addr, c)
	r.byID.Store(c.ID, c)
}

// Remove unregisters c from both indexes.
func (r *Registry) Remove(addr string, c *Closure) {
	r.byAddr.Delete(addr)
	r.byID.Delete(c.ID)
}

// ByAddr looks up the closure handling the connection from addr.
func (r *Registry) ByAddr(addr string) (*Closure, bool) {
	v, ok := r.byAddr.Load(addr)
	if !ok {
		return nil, false
	}
	return v.(*Closure), true
}

// ByID looks up a closure by its session ID.
func (r *Registry) ByID(id string) (*Closure, bool) {
	v, ok := r.byID.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Closure), true
}

// Count returns the number of currently registered closures.
func (r *Registry) Count() int {
	n := 0
	r.byID.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll closes every registered closure (best-effort) and empties
// the registry; used on daemon shutdown.
func (r *Registry) CloseAll() error {
	var err error
	r.byID.Range(func(_, v any) bool {
		if cerr := v.(*Closure).Close(); err == nil {
			err = cerr
		}
		return true
	})
	r.byAddr = sync.Map{}
	r.byID = sync.Map{}
	return err
}
