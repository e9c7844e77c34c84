package application

import "sync"

// taskGuard admits at most one in-flight scan per pick task.
type taskGuard struct {
	mu       sync.Mutex
	inFlight map[int]struct{}
}

func newTaskGuard() *taskGuard {
	return &taskGuard{inFlight: make(map[int]struct{})}
}

// acquire returns false when taskID is already held
func (g *taskGuard) acquire(taskID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[taskID]; busy {
		return false
	}
	g.inFlight[taskID] = struct{}{}
	return true
}

func (g *taskGuard) release(taskID int) {
	g.mu.Lock()
	delete(g.inFlight, taskID)
	g.mu.Unlock()
}
