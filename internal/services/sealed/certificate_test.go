package sealed_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	"vesper/internal/services/sealed"
)

const (
	certIssuedAt = int64(1_700_000_000_000)
	certExpiry   = certIssuedAt + 86_400_000
)

type certChain struct {
	trustRootPub  domain.Ed25519Public
	trustRootPriv domain.Ed25519Private
	serverPriv    domain.Ed25519Private
	server        *sealed.ServerCertificate
}

func makeChain(t *testing.T) *certChain {
	t.Helper()
	rootPriv, rootPub, err := crypto.GenerateEd25519(rand.Reader)
	require.NoError(t, err)
	serverPriv, serverPub, err := crypto.GenerateEd25519(rand.Reader)
	require.NoError(t, err)
	return &certChain{
		trustRootPub:  rootPub,
		trustRootPriv: rootPriv,
		serverPriv:    serverPriv,
		server:        sealed.NewServerCertificate(1, serverPub, rootPriv),
	}
}

func (c *certChain) senderCert(identity domain.X25519Public) *sealed.SenderCertificate {
	return sealed.NewSenderCertificate(
		"9d0652a3-dcc3-4d11-975f-74d61598733f", "+14155550100",
		1, identity, certExpiry, c.server, c.serverPriv,
	)
}

func TestSenderCertificate_Valid(t *testing.T) {
	chain := makeChain(t)
	cert := chain.senderCert(domain.X25519Public{1})

	require.NoError(t, cert.Validate(chain.trustRootPub, certIssuedAt))
}

func TestSenderCertificate_Expired(t *testing.T) {
	chain := makeChain(t)
	cert := chain.senderCert(domain.X25519Public{1})

	err := cert.Validate(chain.trustRootPub, certExpiry)
	require.ErrorIs(t, err, domain.ErrCertificateExpired)

	err = cert.Validate(chain.trustRootPub, certExpiry+1)
	require.ErrorIs(t, err, domain.ErrCertificateExpired)

	// Just before expiry is still fine.
	require.NoError(t, cert.Validate(chain.trustRootPub, certExpiry-1))
}

func TestSenderCertificate_WrongTrustRoot(t *testing.T) {
	chain := makeChain(t)
	other := makeChain(t)
	cert := chain.senderCert(domain.X25519Public{1})

	err := cert.Validate(other.trustRootPub, certIssuedAt)
	require.ErrorIs(t, err, domain.ErrInvalidCertificate)
}

func TestSenderCertificate_TamperedFields(t *testing.T) {
	chain := makeChain(t)
	cert := chain.senderCert(domain.X25519Public{1})

	cert.DeviceID = 2
	err := cert.Validate(chain.trustRootPub, certIssuedAt)
	require.ErrorIs(t, err, domain.ErrInvalidCertificate)
}

func TestSenderCertificate_ForgedServerCertificate(t *testing.T) {
	chain := makeChain(t)
	rogue := makeChain(t)

	// Server certificate signed by a different root, sender certificate
	// otherwise consistent.
	cert := sealed.NewSenderCertificate(
		"uuid", "", 1, domain.X25519Public{1}, certExpiry,
		rogue.server, rogue.serverPriv,
	)
	err := cert.Validate(chain.trustRootPub, certIssuedAt)
	require.ErrorIs(t, err, domain.ErrInvalidCertificate)
}

func TestSenderCertificate_NoSigner(t *testing.T) {
	cert := &sealed.SenderCertificate{SenderUUID: "uuid"}
	err := cert.Validate(domain.Ed25519Public{}, certIssuedAt)
	require.ErrorIs(t, err, domain.ErrInvalidCertificate)
}

func TestSenderCertificate_SerializeRoundTrip(t *testing.T) {
	chain := makeChain(t)
	cert := chain.senderCert(domain.X25519Public{9})

	parsed, err := sealed.ParseSenderCertificate(cert.Serialize())
	require.NoError(t, err)
	require.Equal(t, cert.SenderUUID, parsed.SenderUUID)
	require.Equal(t, cert.SenderE164, parsed.SenderE164)
	require.Equal(t, cert.DeviceID, parsed.DeviceID)
	require.Equal(t, cert.IdentityKey, parsed.IdentityKey)
	require.Equal(t, cert.Expiration, parsed.Expiration)
	require.NoError(t, parsed.Validate(chain.trustRootPub, certIssuedAt))
}

func TestContent_SerializeRoundTrip(t *testing.T) {
	chain := makeChain(t)
	content := &sealed.Content{
		Type:    sealed.ContentWhisper,
		Sender:  chain.senderCert(domain.X25519Public{3}),
		Hint:    sealed.HintResendable,
		GroupID: []byte("group-7"),
		Body:    []byte("inner frame"),
	}

	parsed, err := sealed.ParseContent(content.Serialize())
	require.NoError(t, err)
	require.Equal(t, content.Type, parsed.Type)
	require.Equal(t, content.Hint, parsed.Hint)
	require.Equal(t, content.GroupID, parsed.GroupID)
	require.Equal(t, content.Body, parsed.Body)
	require.Equal(t, content.Sender.SenderUUID, parsed.Sender.SenderUUID)
}

func TestContent_UnknownType(t *testing.T) {
	chain := makeChain(t)
	content := &sealed.Content{
		Type:   sealed.ContentWhisper,
		Sender: chain.senderCert(domain.X25519Public{3}),
		Body:   []byte("x"),
	}
	b := content.Serialize()
	b[0] = 99
	_, err := sealed.ParseContent(b)
	require.ErrorIs(t, err, domain.ErrUnknownMessageVersion)
}
