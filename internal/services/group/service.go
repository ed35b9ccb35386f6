package group

import (
	"encoding/binary"
	"fmt"
	"io"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	"vesper/internal/protocol/senderkey"
	"vesper/internal/wire"
)

// Service creates, distributes and advances group sender keys.
type Service struct {
	senderKeys domain.SenderKeyStore
	rand       io.Reader
}

// New constructs a group service over the given sender-key store.
func New(senderKeys domain.SenderKeyStore, rand io.Reader) *Service {
	return &Service{senderKeys: senderKeys, rand: rand}
}

// CreateDistribution returns the distribution message announcing the
// local sender's chain for (sender, dist), creating the chain on first
// use. Re-invoking for an existing chain re-publishes its current
// position, so a new group member can catch up.
func (s *Service) CreateDistribution(sender domain.Address, dist domain.DistributionID) (*wire.SenderKeyDistribution, error) {
	record, ok, err := s.senderKeys.LoadSenderKey(sender, dist)
	if err != nil {
		return nil, fmt.Errorf("load sender key: %w", err)
	}
	if !ok {
		record = &domain.SenderKeyRecord{}
	}

	state, ok := record.Current()
	if !ok || state.SignPriv == nil {
		state, err = s.freshState()
		if err != nil {
			return nil, err
		}
		record.AddState(state)
		if err := s.senderKeys.StoreSenderKey(sender, dist, record); err != nil {
			return nil, fmt.Errorf("store sender key: %w", err)
		}
	}

	return &wire.SenderKeyDistribution{
		DistributionID: dist,
		ChainID:        state.ChainID,
		Iteration:      state.Chain.Iteration,
		ChainKey:       append([]byte(nil), state.Chain.Seed...),
		SigningKey:     state.SignPub,
	}, nil
}

// ProcessDistribution stores a sender's published chain so their group
// messages can be decrypted. Processing the same chain id again is a
// no-op: stored chains never rewind.
func (s *Service) ProcessDistribution(sender domain.Address, msg *wire.SenderKeyDistribution) error {
	if len(msg.ChainKey) != 32 {
		return fmt.Errorf("%w: chain key is %d bytes, want 32", domain.ErrInvalidKeyMaterial, len(msg.ChainKey))
	}

	record, ok, err := s.senderKeys.LoadSenderKey(sender, msg.DistributionID)
	if err != nil {
		return fmt.Errorf("load sender key: %w", err)
	}
	if !ok {
		record = &domain.SenderKeyRecord{}
	}
	if _, exists := record.State(msg.ChainID); exists {
		return nil
	}

	record.AddState(&domain.SenderKeyState{
		ChainID: msg.ChainID,
		Chain: domain.SenderChainKey{
			Iteration: msg.Iteration,
			Seed:      append([]byte(nil), msg.ChainKey...),
		},
		SignPub: msg.SigningKey,
	})
	if err := s.senderKeys.StoreSenderKey(sender, msg.DistributionID, record); err != nil {
		return fmt.Errorf("store sender key: %w", err)
	}
	return nil
}

// Encrypt advances the local chain one step, encrypts plaintext for the
// group and signs the result with the distribution signing key.
func (s *Service) Encrypt(sender domain.Address, dist domain.DistributionID, plaintext []byte) (*wire.SenderKey, error) {
	record, ok, err := s.senderKeys.LoadSenderKey(sender, dist)
	if err != nil {
		return nil, fmt.Errorf("load sender key: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrSenderKeyNotFound, sender, dist)
	}
	state, ok := record.Current()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrSenderKeyNotFound, sender, dist)
	}
	if state.SignPriv == nil {
		return nil, fmt.Errorf("%w: not the distribution owner", domain.ErrSenderKeyNotFound)
	}

	key := senderkey.MessageKey(state.Chain)
	ciphertext, err := senderkey.Seal(key, plaintext)
	if err != nil {
		return nil, err
	}
	msg := wire.NewSenderKey(*state.SignPriv, dist, state.ChainID, key.Iteration, ciphertext)

	state.Chain = senderkey.Next(state.Chain)
	if err := s.senderKeys.StoreSenderKey(sender, dist, record); err != nil {
		return nil, fmt.Errorf("store sender key: %w", err)
	}
	return msg, nil
}

// Decrypt verifies a group message against the stored chain for its
// sender, fast-forwarding within bounds, and persists the advanced chain.
// The signature is checked before any plaintext is released.
func (s *Service) Decrypt(sender domain.Address, msg *wire.SenderKey) ([]byte, error) {
	record, ok, err := s.senderKeys.LoadSenderKey(sender, msg.DistributionID)
	if err != nil {
		return nil, fmt.Errorf("load sender key: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrSenderKeyNotFound, sender, msg.DistributionID)
	}
	state, ok := record.State(msg.ChainID)
	if !ok {
		return nil, fmt.Errorf("%w: chain %d", domain.ErrSenderKeyNotFound, msg.ChainID)
	}

	if err := msg.VerifySignature(state.SignPub); err != nil {
		return nil, err
	}

	key, err := senderkey.MessageKeyFor(state, msg.Iteration)
	if err != nil {
		return nil, err
	}
	plaintext, err := senderkey.Open(key, msg.Ciphertext)
	if err != nil {
		return nil, err
	}

	if err := s.senderKeys.StoreSenderKey(sender, msg.DistributionID, record); err != nil {
		return nil, fmt.Errorf("store sender key: %w", err)
	}
	return plaintext, nil
}

func (s *Service) freshState() (*domain.SenderKeyState, error) {
	var idBytes [4]byte
	if _, err := io.ReadFull(s.rand, idBytes[:]); err != nil {
		return nil, err
	}
	seed := make([]byte, 32)
	if _, err := io.ReadFull(s.rand, seed); err != nil {
		return nil, err
	}
	signPriv, signPub, err := crypto.GenerateEd25519(s.rand)
	if err != nil {
		return nil, err
	}
	return &domain.SenderKeyState{
		ChainID:  binary.BigEndian.Uint32(idBytes[:]),
		Chain:    domain.SenderChainKey{Seed: seed},
		SignPub:  signPub,
		SignPriv: &signPriv,
	}, nil
}
