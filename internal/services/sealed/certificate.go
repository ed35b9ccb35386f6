package sealed

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"vesper/internal/crypto"
	"vesper/internal/domain"
)

// ServerCertificate binds a server signing key to the trust root.
type ServerCertificate struct {
	KeyID     uint32
	Key       domain.Ed25519Public
	Signature []byte
}

// NewServerCertificate signs (keyID, key) with the trust root private
// key.
func NewServerCertificate(keyID uint32, key domain.Ed25519Public, trustRoot domain.Ed25519Private) *ServerCertificate {
	c := &ServerCertificate{KeyID: keyID, Key: key}
	c.Signature = crypto.Sign(trustRoot, c.signedBytes())
	return c
}

// Validate checks the certificate signature against the trust root.
func (c *ServerCertificate) Validate(trustRoot domain.Ed25519Public) error {
	if !crypto.Verify(trustRoot, c.signedBytes(), c.Signature) {
		return fmt.Errorf("%w: server certificate not signed by trust root", domain.ErrInvalidCertificate)
	}
	return nil
}

func (c *ServerCertificate) signedBytes() []byte {
	b := make([]byte, 0, 4+32)
	b = binary.BigEndian.AppendUint32(b, c.KeyID)
	return append(b, c.Key[:]...)
}

// Serialize renders the certificate deterministically.
func (c *ServerCertificate) Serialize() []byte {
	b := c.signedBytes()
	b = binary.BigEndian.AppendUint32(b, uint32(len(c.Signature)))
	return append(b, c.Signature...)
}

// ParseServerCertificate decodes a serialized server certificate.
func ParseServerCertificate(b []byte) (*ServerCertificate, error) {
	if len(b) < 4+32+4 {
		return nil, fmt.Errorf("%w: truncated server certificate", domain.ErrInvalidMessage)
	}
	c := &ServerCertificate{KeyID: binary.BigEndian.Uint32(b)}
	copy(c.Key[:], b[4:36])
	n := binary.BigEndian.Uint32(b[36:40])
	if uint32(len(b)-40) != n {
		return nil, fmt.Errorf("%w: bad server certificate signature length", domain.ErrInvalidMessage)
	}
	c.Signature = append([]byte(nil), b[40:]...)
	return c, nil
}

// SenderCertificate binds a sender's identity, device and expiry to a
// server certificate.
type SenderCertificate struct {
	SenderUUID  string
	SenderE164  string // optional, empty when absent
	DeviceID    uint32
	IdentityKey domain.X25519Public
	Expiration  int64 // milliseconds since epoch
	Signer      *ServerCertificate
	Signature   []byte
}

// NewSenderCertificate signs the sender fields with the server
// certificate's private key.
func NewSenderCertificate(
	senderUUID, senderE164 string,
	deviceID uint32,
	identityKey domain.X25519Public,
	expiration int64,
	signer *ServerCertificate,
	signerKey domain.Ed25519Private,
) *SenderCertificate {
	c := &SenderCertificate{
		SenderUUID:  senderUUID,
		SenderE164:  senderE164,
		DeviceID:    deviceID,
		IdentityKey: identityKey,
		Expiration:  expiration,
		Signer:      signer,
	}
	c.Signature = crypto.Sign(signerKey, c.signedBytes())
	return c
}

// Validate checks the full chain: server certificate against the trust
// root, sender certificate against the server key, and expiry against
// nowMillis. All three must hold.
func (c *SenderCertificate) Validate(trustRoot domain.Ed25519Public, nowMillis int64) error {
	if c.Signer == nil {
		return fmt.Errorf("%w: sender certificate has no signer", domain.ErrInvalidCertificate)
	}
	if err := c.Signer.Validate(trustRoot); err != nil {
		return err
	}
	if !crypto.Verify(c.Signer.Key, c.signedBytes(), c.Signature) {
		return fmt.Errorf("%w: sender certificate not signed by server key", domain.ErrInvalidCertificate)
	}
	if nowMillis >= c.Expiration {
		return fmt.Errorf("%w: expired at %d, validated at %d", domain.ErrCertificateExpired, c.Expiration, nowMillis)
	}
	return nil
}

func (c *SenderCertificate) signedBytes() []byte {
	b := appendString(nil, c.SenderUUID)
	b = appendString(b, c.SenderE164)
	b = binary.BigEndian.AppendUint32(b, c.DeviceID)
	b = append(b, c.IdentityKey[:]...)
	b = binary.BigEndian.AppendUint64(b, uint64(c.Expiration))
	return b
}

// Serialize renders the certificate with its embedded signer.
func (c *SenderCertificate) Serialize() []byte {
	b := c.signedBytes()
	signer := c.Signer.Serialize()
	b = binary.BigEndian.AppendUint32(b, uint32(len(signer)))
	b = append(b, signer...)
	b = binary.BigEndian.AppendUint32(b, uint32(len(c.Signature)))
	return append(b, c.Signature...)
}

// ParseSenderCertificate decodes a serialized sender certificate.
func ParseSenderCertificate(b []byte) (*SenderCertificate, error) {
	c := &SenderCertificate{}
	var err error
	if c.SenderUUID, b, err = takeString(b); err != nil {
		return nil, err
	}
	if c.SenderE164, b, err = takeString(b); err != nil {
		return nil, err
	}
	if len(b) < 4+32+8+4 {
		return nil, fmt.Errorf("%w: truncated sender certificate", domain.ErrInvalidMessage)
	}
	c.DeviceID = binary.BigEndian.Uint32(b)
	copy(c.IdentityKey[:], b[4:36])
	c.Expiration = int64(binary.BigEndian.Uint64(b[36:44]))
	b = b[44:]

	signerBytes, b, err := takeBytes(b)
	if err != nil {
		return nil, err
	}
	if c.Signer, err = ParseServerCertificate(signerBytes); err != nil {
		return nil, err
	}
	sig, b, err := takeBytes(b)
	if err != nil {
		return nil, err
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: bad sender certificate signature length", domain.ErrInvalidMessage)
	}
	c.Signature = sig
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after sender certificate", domain.ErrInvalidMessage)
	}
	return c, nil
}

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func takeString(b []byte) (string, []byte, error) {
	v, rest, err := takeBytes(b)
	return string(v), rest, err
}

func takeBytes(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated length prefix", domain.ErrInvalidMessage)
	}
	n := binary.BigEndian.Uint32(b)
	if uint32(len(b)-4) < n {
		return nil, nil, fmt.Errorf("%w: bad length prefix", domain.ErrInvalidMessage)
	}
	return append([]byte(nil), b[4:4+n]...), b[4+n:], nil
}
