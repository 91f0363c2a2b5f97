package segment

// IDAllocator hands out segment ids that are never reused within a session.
type IDAllocator struct {
	last int
}

func (a *IDAllocator) Next() int {
	a.last++
	return a.last
}

// Observe records an externally assigned id so later ids stay above it.
func (a *IDAllocator) Observe(id int) {
	if id > a.last {
		a.last = id
	}
}

// Peek returns the id the next call to Next would produce.
func (a *IDAllocator) Peek() int {
	return a.last + 1
}
