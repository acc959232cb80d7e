package ffi

import "sync"

// ErrorSlots holds the last error message of each calling thread. A slot keeps
// its message until the thread fails again or clears it.
type ErrorSlots struct {
	slots sync.Map // int64 -> string
}

func (s *ErrorSlots) Set(tid int64, msg string) {
	s.slots.Store(tid, msg)
}

func (s *ErrorSlots) Get(tid int64) (string, bool) {
	v, ok := s.slots.Load(tid)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Clear drops the slot of tid.
func (s *ErrorSlots) Clear(tid int64) {
	s.slots.Delete(tid)
}
