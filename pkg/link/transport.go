package link

// Transport is the byte-oriented duplex channel to the peer.
type Transport interface {
	// IsReadable reports whether ReadByte can return a byte now. It must
	// not block longer than a short, implementation defined poll interval.
	IsReadable() bool
	// ReadByte reads one byte. Only valid after IsReadable returned true.
	ReadByte() (byte, error)
	// WriteText writes s as-is.
	WriteText(s string) error
	// Flush discards all input currently available without blocking.
	Flush() error
}

// Reopener is implemented by transports which can reestablish a dropped
// link, e.g. redial a TCP bridge or reopen an unplugged USB serial device.
type Reopener interface {
	// Err returns the error which broke the link, nil while it is usable.
	Err() error
	// Reopen closes the broken link and establishes a new one.
	Reopen() error
}
