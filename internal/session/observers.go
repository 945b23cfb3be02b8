package session

import "sync"

// observers is a registration list whose removal handles are idempotent.
type observers[F any] struct {
	mu   sync.Mutex
	next uint64
	list []observer[F]
}

type observer[F any] struct {
	id uint64
	fn F
}

func (o *observers[F]) add(fn F) func() {
	o.mu.Lock()
	o.next++
	id := o.next
	o.list = append(o.list, observer[F]{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers[F]) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, ob := range o.list {
		if ob.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

// snapshot returns the registered functions in registration order.
func (o *observers[F]) snapshot() []F {
	o.mu.Lock()
	defer o.mu.Unlock()

	fns := make([]F, len(o.list))
	for i, ob := range o.list {
		fns[i] = ob.fn
	}
	return fns
}

func (o *observers[F]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.list)
}
