package signal

import (
	"reflect"
	"sync/atomic"
	"weak"
)

// Owner anchors the lifetime of a listener. The listener stays registered
// only while its owner reports itself alive; once it does not, the
// listener is treated as cancelled and pruned on the next pass.
type Owner interface {
	Alive() bool
}

type weakOwner[O any] struct {
	ptr weak.Pointer[O]
}

func (w weakOwner[O]) Alive() bool {
	return w.ptr.Value() != nil
}

// Weak returns an Owner that is alive as long as the object p points to is
// reachable by the garbage collector. The returned Owner does not keep p
// alive. A nil p yields an Owner that is already dead.
//
// Weak owners of the same pointer compare equal, so they can be passed to
// CancelFor. Avoid zero-sized or small pointer-free objects: the runtime
// may batch those and keep them alive longer than expected.
func Weak[O any](p *O) Owner {
	return weakOwner[O]{ptr: weak.Make(p)}
}

// Lifetime is an Owner that ends on an explicit call. It suits objects that
// have a Close or Stop method and want their listeners gone at that point,
// without waiting for garbage collection.
type Lifetime struct {
	ended atomic.Bool
}

// NewLifetime returns a live Lifetime.
func NewLifetime() *Lifetime {
	return &Lifetime{}
}

// End marks the lifetime as over. It is safe to call more than once.
func (l *Lifetime) End() {
	l.ended.Store(true)
}

// Alive reports whether End has not been called.
func (l *Lifetime) Alive() bool {
	return l != nil && !l.ended.Load()
}

// Forever is an Owner that never dies. Listeners bound to it live until
// they are cancelled.
var Forever Owner = forever{}

type forever struct{}

func (forever) Alive() bool { return true }

// sameOwner compares owners by identity without panicking on
// uncomparable dynamic types.
func sameOwner(a, b Owner) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
