//go:build debug

package channel

// New returns an unbuffered channel, ignoring size. Debug builds make
// every hand-off synchronous so ordering bugs surface deterministically.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
