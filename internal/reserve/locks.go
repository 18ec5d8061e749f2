package reserve

import "sync"

// machineLocks hands out one mutex per machine id so that every
// read-modify-write on a machine record is serialized, while operations on
// different machines proceed independently.
type machineLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newMachineLocks() *machineLocks {
	return &machineLocks{locks: make(map[int64]*sync.Mutex)}
}

// get returns the mutex for a machine id, creating it on first use. Locks are
// never released back; the machine set is small and fixed at provisioning.
func (l *machineLocks) get(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
