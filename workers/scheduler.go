package workers

import (
	"sync"
	"time"

	"zapihook/metrics"

	"github.com/jonboulle/clockwork"
)

// ScheduledReply is the pending timer of one key. Only the current timer of a
// key is allowed to fire its task.
type ScheduledReply struct {
	Key    string
	Window time.Duration

	id    uint64
	timer clockwork.Timer
}

// Scheduler debounces tasks per key: scheduling a key again cancels the
// pending timer and starts a new one, so a burst runs only the last task.
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending map[string]*ScheduledReply
	nextID  uint64
	stopped bool
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:   clock,
		pending: make(map[string]*ScheduledReply),
	}
}

// Schedule arma (ou rearma) o timer de key. Retorna false após Stop.
func (s *Scheduler) Schedule(key string, delay time.Duration, task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
		delete(s.pending, key)
	}

	s.nextID++
	entry := &ScheduledReply{Key: key, Window: delay, id: s.nextID}
	id := entry.id
	entry.timer = s.clock.AfterFunc(delay, func() {
		if !s.release(key, id) {
			return
		}
		task()
	})
	s.pending[key] = entry

	metrics.ScheduledReplies.Set(float64(len(s.pending)))
	return true
}

// release remove a entrada se ela ainda for o timer atual de key.
func (s *Scheduler) release(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[key]
	if !ok || entry.id != id {
		return false
	}
	delete(s.pending, key)
	metrics.ScheduledReplies.Set(float64(len(s.pending)))
	return true
}

func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending timer. Used on graceful shutdown.
func (s *Scheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	canceled := 0
	for key, entry := range s.pending {
		if entry.timer.Stop() {
			canceled++
		}
		delete(s.pending, key)
	}
	s.stopped = true
	metrics.ScheduledReplies.Set(0)
	return canceled
}
