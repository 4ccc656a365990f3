package syncgroup

import "sync"

// SyncGroup wraps sync.WaitGroup so the Add/Done pairing cannot be
// forgotten: Go both registers and launches the goroutine.
type SyncGroup struct {
	wg sync.WaitGroup
}

func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Go runs fn in its own goroutine tracked by the group.
func (g *SyncGroup) Go(fn func()) {
	if fn == nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
