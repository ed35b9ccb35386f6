package sealed

import (
	"encoding/binary"
	"fmt"

	"vesper/internal/domain"
)

// ContentType tags the ciphertext carried inside a sealed envelope. The
// enumeration is fixed: whisper and prekey share the wire discriminants,
// sender-key content uses 7.
type ContentType byte

const (
	ContentWhisper   ContentType = 2
	ContentPreKey    ContentType = 3
	ContentSenderKey ContentType = 7
)

// ContentHint tells a recipient that failed to decrypt whether the
// sender can resend.
type ContentHint uint32

const (
	HintDefault    ContentHint = 0
	HintResendable ContentHint = 1
	HintImplicit   ContentHint = 2
)

// Content is the plaintext side of a sealed envelope: the inner
// ciphertext, its type, the sender certificate and routing hints. It is
// built and consumed within one encrypt or decrypt call.
type Content struct {
	Type    ContentType
	Sender  *SenderCertificate
	Hint    ContentHint
	GroupID []byte // optional
	Body    []byte
}

// Serialize renders the content deterministically.
func (c *Content) Serialize() []byte {
	cert := c.Sender.Serialize()
	b := make([]byte, 0, 1+4+len(cert)+4+4+len(c.GroupID)+4+len(c.Body))
	b = append(b, byte(c.Type))
	b = binary.BigEndian.AppendUint32(b, uint32(len(cert)))
	b = append(b, cert...)
	b = binary.BigEndian.AppendUint32(b, uint32(c.Hint))
	b = binary.BigEndian.AppendUint32(b, uint32(len(c.GroupID)))
	b = append(b, c.GroupID...)
	b = binary.BigEndian.AppendUint32(b, uint32(len(c.Body)))
	b = append(b, c.Body...)
	return b
}

// ParseContent decodes a serialized envelope content.
func ParseContent(b []byte) (*Content, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("%w: empty envelope content", domain.ErrInvalidMessage)
	}
	c := &Content{Type: ContentType(b[0])}
	switch c.Type {
	case ContentWhisper, ContentPreKey, ContentSenderKey:
	default:
		return nil, fmt.Errorf("%w: envelope content type %d", domain.ErrUnknownMessageVersion, b[0])
	}
	b = b[1:]

	cert, b, err := takeBytes(b)
	if err != nil {
		return nil, err
	}
	if c.Sender, err = ParseSenderCertificate(cert); err != nil {
		return nil, err
	}
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: truncated content hint", domain.ErrInvalidMessage)
	}
	c.Hint = ContentHint(binary.BigEndian.Uint32(b))
	b = b[4:]

	if c.GroupID, b, err = takeBytes(b); err != nil {
		return nil, err
	}
	if len(c.GroupID) == 0 {
		c.GroupID = nil
	}
	if c.Body, b, err = takeBytes(b); err != nil {
		return nil, err
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after envelope content", domain.ErrInvalidMessage)
	}
	return c, nil
}
