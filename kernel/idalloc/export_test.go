package idalloc

// SetCounter moves the allocation counter, so tests can reach the end of the
// id space.
func (a *Allocator) SetCounter(next uint64) {
	a.next = next
}
