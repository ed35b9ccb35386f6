package sealed_test

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	groupsvc "vesper/internal/services/group"
	prekeysvc "vesper/internal/services/prekey"
	"vesper/internal/services/sealed"
	sessionsvc "vesper/internal/services/session"
	"vesper/internal/store"
	"vesper/internal/wire"
)

type endpoint struct {
	uuid     string
	addr     domain.Address
	identity domain.IdentityKeyPair
	store    *store.Memory
	sessions *sessionsvc.Service
	groups   *groupsvc.Service
	prekeys  *prekeysvc.Service
	sealed   *sealed.Service
}

func makeEndpoint(t *testing.T) *endpoint {
	t.Helper()
	id, err := crypto.GenerateIdentityKeyPair(rand.Reader)
	require.NoError(t, err)
	registrationID, err := crypto.GenerateRegistrationID(rand.Reader)
	require.NoError(t, err)

	st := store.NewMemory(id, registrationID)
	sessions := sessionsvc.New(st, st, st, st, rand.Reader)
	groups := groupsvc.New(st, rand.Reader)
	u := uuid.New().String()
	return &endpoint{
		uuid:     u,
		addr:     domain.NewAddress(u, 1),
		identity: id,
		store:    st,
		sessions: sessions,
		groups:   groups,
		prekeys:  prekeysvc.New(st, st, st, rand.Reader),
		sealed:   sealed.New(st, sessions, groups, rand.Reader),
	}
}

// bundleFor generates and returns the endpoint's published bundle.
func bundleFor(t *testing.T, e *endpoint) domain.PreKeyBundle {
	t.Helper()
	preKeyID := uint32(1)
	_, err := e.prekeys.GeneratePreKeys(preKeyID, 1)
	require.NoError(t, err)
	_, err = e.prekeys.GenerateSignedPreKey(1, time.Now().UnixMilli())
	require.NoError(t, err)
	bundle, err := e.prekeys.MakeBundle(1, 1, &preKeyID)
	require.NoError(t, err)
	return bundle
}

func TestSealed_PreKeyThenWhisper(t *testing.T) {
	chain := makeChain(t)
	now := certIssuedAt

	alice := makeEndpoint(t)
	bob := makeEndpoint(t)

	require.NoError(t, alice.sessions.ProcessPreKeyBundle(bob.addr, bundleFor(t, bob)))
	aliceCert := sealed.NewSenderCertificate(
		alice.uuid, "", 1, alice.identity.XPub, certExpiry, chain.server, chain.serverPriv)

	// First sealed message carries a prekey frame.
	msg, err := alice.sessions.Encrypt(bob.addr, []byte("sealed hello"))
	require.NoError(t, err)
	require.IsType(t, &wire.PreKey{}, msg)

	envelope, err := alice.sealed.Encrypt(bob.addr, &sealed.Content{
		Type:   sealed.ContentPreKey,
		Sender: aliceCert,
		Body:   msg.Serialize(),
	})
	require.NoError(t, err)

	result, err := bob.sealed.Decrypt(envelope, chain.trustRootPub, now)
	require.NoError(t, err)
	require.Equal(t, alice.uuid, result.SenderUUID)
	require.Equal(t, uint32(1), result.DeviceID)
	require.Equal(t, []byte("sealed hello"), result.Plaintext)

	// Bob replies sealed too; his identity got pinned during the
	// bootstrap, alice's during bundle processing.
	bobCert := sealed.NewSenderCertificate(
		bob.uuid, "", 1, bob.identity.XPub, certExpiry, chain.server, chain.serverPriv)
	reply, err := bob.sessions.Encrypt(alice.addr, []byte("sealed ack"))
	require.NoError(t, err)
	require.IsType(t, &wire.Whisper{}, reply)

	envelope, err = bob.sealed.Encrypt(alice.addr, &sealed.Content{
		Type:   sealed.ContentWhisper,
		Sender: bobCert,
		Body:   reply.Serialize(),
	})
	require.NoError(t, err)

	result, err = alice.sealed.Decrypt(envelope, chain.trustRootPub, now)
	require.NoError(t, err)
	require.Equal(t, bob.uuid, result.SenderUUID)
	require.Equal(t, []byte("sealed ack"), result.Plaintext)
}

func TestSealed_SenderKeyContent(t *testing.T) {
	chain := makeChain(t)
	alice := makeEndpoint(t)
	bob := makeEndpoint(t)
	dist := uuid.New()

	// Bob knows alice's identity (from some prior exchange) and her chain.
	_, err := bob.store.SaveIdentity(alice.addr, alice.identity.XPub)
	require.NoError(t, err)
	_, err = alice.store.SaveIdentity(bob.addr, bob.identity.XPub)
	require.NoError(t, err)

	distMsg, err := alice.groups.CreateDistribution(alice.addr, dist)
	require.NoError(t, err)
	require.NoError(t, bob.groups.ProcessDistribution(alice.addr, distMsg))

	msg, err := alice.groups.Encrypt(alice.addr, dist, []byte("sealed group"))
	require.NoError(t, err)

	aliceCert := sealed.NewSenderCertificate(
		alice.uuid, "", 1, alice.identity.XPub, certExpiry, chain.server, chain.serverPriv)
	envelope, err := alice.sealed.Encrypt(bob.addr, &sealed.Content{
		Type:    sealed.ContentSenderKey,
		Sender:  aliceCert,
		Hint:    sealed.HintImplicit,
		GroupID: dist[:],
		Body:    msg.Serialize(),
	})
	require.NoError(t, err)

	result, err := bob.sealed.Decrypt(envelope, chain.trustRootPub, certIssuedAt)
	require.NoError(t, err)
	require.Equal(t, []byte("sealed group"), result.Plaintext)
}

func TestSealed_ExpiredCertificateRejected(t *testing.T) {
	chain := makeChain(t)
	alice := makeEndpoint(t)
	bob := makeEndpoint(t)

	require.NoError(t, alice.sessions.ProcessPreKeyBundle(bob.addr, bundleFor(t, bob)))
	aliceCert := sealed.NewSenderCertificate(
		alice.uuid, "", 1, alice.identity.XPub, certExpiry, chain.server, chain.serverPriv)

	msg, err := alice.sessions.Encrypt(bob.addr, []byte("late"))
	require.NoError(t, err)
	envelope, err := alice.sealed.Encrypt(bob.addr, &sealed.Content{
		Type:   sealed.ContentPreKey,
		Sender: aliceCert,
		Body:   msg.Serialize(),
	})
	require.NoError(t, err)

	_, err = bob.sealed.Decrypt(envelope, chain.trustRootPub, certExpiry+1)
	require.ErrorIs(t, err, domain.ErrCertificateExpired)
}

func TestSealed_OnlyRecipientCanOpen(t *testing.T) {
	chain := makeChain(t)
	alice := makeEndpoint(t)
	bob := makeEndpoint(t)
	carol := makeEndpoint(t)

	require.NoError(t, alice.sessions.ProcessPreKeyBundle(bob.addr, bundleFor(t, bob)))
	aliceCert := sealed.NewSenderCertificate(
		alice.uuid, "", 1, alice.identity.XPub, certExpiry, chain.server, chain.serverPriv)

	msg, err := alice.sessions.Encrypt(bob.addr, []byte("private"))
	require.NoError(t, err)
	envelope, err := alice.sealed.Encrypt(bob.addr, &sealed.Content{
		Type:   sealed.ContentPreKey,
		Sender: aliceCert,
		Body:   msg.Serialize(),
	})
	require.NoError(t, err)

	_, err = carol.sealed.DecryptToContent(envelope)
	require.ErrorIs(t, err, domain.ErrSignatureVerification)
}

func TestSealed_DecryptToContent(t *testing.T) {
	chain := makeChain(t)
	alice := makeEndpoint(t)
	bob := makeEndpoint(t)

	require.NoError(t, alice.sessions.ProcessPreKeyBundle(bob.addr, bundleFor(t, bob)))
	aliceCert := sealed.NewSenderCertificate(
		alice.uuid, "", 1, alice.identity.XPub, certExpiry, chain.server, chain.serverPriv)

	envelope, err := alice.sealed.Encrypt(bob.addr, &sealed.Content{
		Type:   sealed.ContentWhisper,
		Sender: aliceCert,
		Hint:   sealed.HintResendable,
		Body:   []byte("opaque inner frame"),
	})
	require.NoError(t, err)

	content, err := bob.sealed.DecryptToContent(envelope)
	require.NoError(t, err)
	require.Equal(t, sealed.ContentWhisper, content.Type)
	require.Equal(t, sealed.HintResendable, content.Hint)
	require.Equal(t, alice.uuid, content.Sender.SenderUUID)
	require.Equal(t, []byte("opaque inner frame"), content.Body)
}

func TestSealed_NoPinnedRecipientIdentity(t *testing.T) {
	chain := makeChain(t)
	alice := makeEndpoint(t)
	bob := makeEndpoint(t)

	aliceCert := sealed.NewSenderCertificate(
		alice.uuid, "", 1, alice.identity.XPub, certExpiry, chain.server, chain.serverPriv)
	_, err := alice.sealed.Encrypt(bob.addr, &sealed.Content{
		Type:   sealed.ContentWhisper,
		Sender: aliceCert,
		Body:   []byte("x"),
	})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSealed_BadEnvelopeVersion(t *testing.T) {
	bob := makeEndpoint(t)
	_, err := bob.sealed.DecryptToContent([]byte{0x7f, 0x00, 0x00})
	require.ErrorIs(t, err, domain.ErrUnknownMessageVersion)
}
