package frameloop

import (
	"os"
)

// Checksum is the additive checksum of data, wrapping at 32 bits.
func Checksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return sum
}

// Deduper decides whether a received frame is worth rendering.
type Deduper interface {
	// Seen reports whether the frame with the checksum is already shown.
	Seen(sum uint32) bool
	// Remember records the checksum of a rendered frame.
	Remember(sum uint32)
	// Forget clears the state, the next frame always renders.
	Forget()
}

// ChecksumDedupe skips a frame whose checksum equals the last rendered one.
type ChecksumDedupe struct {
	sum uint32
	set bool
}

// Seen implements Deduper.
func (d *ChecksumDedupe) Seen(sum uint32) bool {
	return d.set && d.sum == sum
}

// Remember implements Deduper.
func (d *ChecksumDedupe) Remember(sum uint32) {
	d.sum, d.set = sum, true
}

// Forget implements Deduper.
func (d *ChecksumDedupe) Forget() {
	d.sum, d.set = 0, false
}

// Last returns the last rendered checksum, if any.
func (d *ChecksumDedupe) Last() (uint32, bool) {
	return d.sum, d.set
}

// NoDedupe renders every frame.
type NoDedupe struct{}

// Seen implements Deduper.
func (NoDedupe) Seen(uint32) bool { return false }

// Remember implements Deduper.
func (NoDedupe) Remember(uint32) {}

// Forget implements Deduper.
func (NoDedupe) Forget() {}

// Fallback provides a placeholder frame when transfers keep failing.
type Fallback interface {
	// Frame returns the placeholder to show after the given number of
	// consecutive failed cycles, or nil for none.
	Frame(failures int) ([]byte, error)
}

// NoFallback never shows a placeholder.
type NoFallback struct{}

// Frame implements Fallback.
func (NoFallback) Frame(int) ([]byte, error) { return nil, nil }

// FileFallback shows a raw frame loaded from Path once After consecutive
// cycles failed.
type FileFallback struct {
	After int
	Path  string
}

// Frame implements Fallback.
func (f *FileFallback) Frame(failures int) ([]byte, error) {
	if failures != f.After {
		return nil, nil
	}
	return os.ReadFile(f.Path)
}
