package service

import "sync"

// AddressLocks serializes run activation and implicit run creation per
// device address. Addresses are not unique across devices, so exclusivity
// has to hold for the whole address group, which a per-device lock could
// not give us.
type AddressLocks struct {
	mu    sync.Mutex
	locks map[string]*addressLock
}

type addressLock struct {
	mu   sync.Mutex
	refs int
}

func NewAddressLocks() *AddressLocks {
	return &AddressLocks{locks: map[string]*addressLock{}}
}

// Lock acquires the lock for the address and returns the release func.
// Lock entries are dropped once the last holder releases, so the map does
// not grow with the address space.
func (a *AddressLocks) Lock(address string) func() {
	a.mu.Lock()
	l, ok := a.locks[address]
	if !ok {
		l = &addressLock{}
		a.locks[address] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, address)
		}
		a.mu.Unlock()
	}
}
