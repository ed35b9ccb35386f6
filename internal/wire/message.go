package wire

import (
	"encoding/binary"
	"fmt"

	"vesper/internal/domain"
)

// Kind is the wire discriminant of a message variant.
type Kind byte

const (
	KindWhisper               Kind = 2
	KindPreKey                Kind = 3
	KindSenderKey             Kind = 4
	KindSenderKeyDistribution Kind = 5
)

// Message is the closed set of wire variants. Each variant serializes
// itself; dispatch sites switch on the concrete type.
type Message interface {
	Kind() Kind
	Serialize() []byte

	// sealed limits implementations to this package.
	sealed()
}

// Parse decodes any wire variant, dispatching on the discriminant byte.
func Parse(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", domain.ErrInvalidMessage)
	}
	switch Kind(b[0]) {
	case KindWhisper:
		return ParseWhisper(b)
	case KindPreKey:
		return ParsePreKey(b)
	case KindSenderKey:
		return ParseSenderKey(b)
	case KindSenderKeyDistribution:
		return ParseSenderKeyDistribution(b)
	default:
		return nil, fmt.Errorf("%w: kind %d", domain.ErrUnknownMessageVersion, b[0])
	}
}

// header checks the kind and version prefix and returns a cursor past it.
func header(b []byte, want Kind) (*reader, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: truncated header", domain.ErrInvalidMessage)
	}
	if Kind(b[0]) != want {
		return nil, fmt.Errorf("%w: kind %d, want %d", domain.ErrUnknownMessageVersion, b[0], want)
	}
	if b[1] != domain.SessionVersion {
		return nil, fmt.Errorf("%w: version %d", domain.ErrUnknownMessageVersion, b[1])
	}
	return &reader{buf: b, off: 2}, nil
}

// reader is a bounds-checked cursor over wire bytes.
type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if len(r.buf)-r.off < n {
		return nil, fmt.Errorf("%w: truncated", domain.ErrInvalidMessage)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n > uint32(len(r.buf)-r.off) {
		return nil, fmt.Errorf("%w: bad length prefix", domain.ErrInvalidMessage)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (r *reader) key32() (domain.X25519Public, error) {
	var k domain.X25519Public
	b, err := r.take(32)
	if err != nil {
		return k, err
	}
	copy(k[:], b)
	return k, nil
}

func (r *reader) done() error {
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d trailing bytes", domain.ErrInvalidMessage, len(r.buf)-r.off)
	}
	return nil
}

func appendUint32(b []byte, v uint32) []byte {
	var u [4]byte
	binary.BigEndian.PutUint32(u[:], v)
	return append(b, u[:]...)
}

func appendBytes(b, v []byte) []byte {
	b = appendUint32(b, uint32(len(v)))
	return append(b, v...)
}
