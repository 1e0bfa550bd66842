//go:build !debug

package channel

// New returns a buffered channel sized for size elements. Event queues
// in front of the dispatcher absorb bursts without blocking producers.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
