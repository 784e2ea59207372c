package session

import "sync"

// SlotState is the occupancy of the single translation slot.
type SlotState string

const (
	SlotIdle SlotState = "idle"
	SlotBusy SlotState = "busy"
)

// Slot serializes translation runs: one chapter translates at a time
// and concurrent triggers observe busy instead of queueing.
type Slot struct {
	mu    sync.Mutex
	state SlotState
	owner string
}

func NewSlot() *Slot {
	return &Slot{state: SlotIdle}
}

// TryAcquire claims the slot for owner. It never blocks; a second
// trigger while busy returns false.
func (s *Slot) TryAcquire(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SlotBusy {
		return false
	}
	s.state = SlotBusy
	s.owner = owner
	return true
}

func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SlotIdle
	s.owner = ""
}

func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Owner names what holds the slot, empty when idle.
func (s *Slot) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}
