package ratchet

import (
	"errors"
	"fmt"
	"io"

	"vesper/internal/crypto"
	"vesper/internal/domain"
	"vesper/internal/util/memzero"
)

var errNoSenderChain = errors.New("session state has no sender chain")

// MessageKeysForSending derives the keys for the next outgoing message
// and irreversibly advances the sending chain.
func MessageKeysForSending(st *domain.SessionState) (domain.MessageKeys, error) {
	if st.Sender == nil {
		return domain.MessageKeys{}, errNoSenderChain
	}
	keys := DeriveMessageKeys(st.Sender.ChainKey, st.Sender.Index)
	next := NextChainKey(st.Sender.ChainKey)
	memzero.Zero(st.Sender.ChainKey)
	st.Sender.ChainKey = next
	st.Sender.Index++
	return keys, nil
}

// StepReceiving performs a full Diffie-Hellman ratchet turn for a remote
// ratchet key not seen before on this state: the previous receiving chain
// caches its remaining keys up to previousCounter, a new receiving chain
// is derived, and the sending chain is replaced with a fresh ratchet key
// pair so the next outgoing message advances the remote side too.
func StepReceiving(rand io.Reader, st *domain.SessionState, theirRatchetPub domain.X25519Public, previousCounter uint32) error {
	if st.Sender == nil {
		return errNoSenderChain
	}

	if len(st.Receivers) > 0 {
		if err := skipTo(&st.Receivers[0], previousCounter); err != nil {
			return err
		}
	}

	recvDH, err := crypto.DH(st.Sender.RatchetPriv, theirRatchetPub)
	if err != nil {
		return err
	}
	rootKey, recvCK := AdvanceRoot(st.RootKey, recvDH)
	memzero.Zero(recvDH[:])
	st.AddReceiverChain(domain.ReceiverChain{RatchetPub: theirRatchetPub, ChainKey: recvCK})

	newPriv, newPub, err := crypto.GenerateX25519(rand)
	if err != nil {
		return err
	}
	sendDH, err := crypto.DH(newPriv, theirRatchetPub)
	if err != nil {
		return err
	}
	rootKey, sendCK := AdvanceRoot(rootKey, sendDH)
	memzero.Zero(sendDH[:])

	st.PreviousCounter = st.Sender.Index
	memzero.Zero(st.RootKey)
	st.RootKey = rootKey
	st.Sender = &domain.SenderChain{
		RatchetPub:  newPub,
		RatchetPriv: newPriv,
		ChainKey:    sendCK,
	}
	return nil
}

// MessageKeysForReceiving returns the keys for counter on the chain
// belonging to theirRatchetPub, fast-forwarding the chain and caching
// skipped keys within the reorder bound. A counter behind the chain with
// no cached key, or a gap beyond domain.MaxSkippedKeys, fails with
// domain.ErrReplayOrOutOfOrder.
func MessageKeysForReceiving(st *domain.SessionState, theirRatchetPub domain.X25519Public, counter uint32) (domain.MessageKeys, error) {
	chain, ok := st.ReceiverChain(theirRatchetPub)
	if !ok {
		return domain.MessageKeys{}, fmt.Errorf("%w: no receiving chain for ratchet key", domain.ErrSessionNotFound)
	}

	if counter < chain.Index {
		if keys, ok := takeSkipped(chain, counter); ok {
			return keys, nil
		}
		return domain.MessageKeys{}, fmt.Errorf("%w: counter %d already consumed", domain.ErrReplayOrOutOfOrder, counter)
	}

	if err := skipTo(chain, counter); err != nil {
		return domain.MessageKeys{}, err
	}
	keys := DeriveMessageKeys(chain.ChainKey, counter)
	next := NextChainKey(chain.ChainKey)
	memzero.Zero(chain.ChainKey)
	chain.ChainKey = next
	chain.Index = counter + 1
	return keys, nil
}

// skipTo derives and caches message keys for indices [chain.Index, until)
// without consuming the target index.
func skipTo(chain *domain.ReceiverChain, until uint32) error {
	if until <= chain.Index {
		return nil
	}
	if until-chain.Index > domain.MaxSkippedKeys {
		return fmt.Errorf("%w: gap of %d messages exceeds bound %d",
			domain.ErrReplayOrOutOfOrder, until-chain.Index, domain.MaxSkippedKeys)
	}
	for chain.Index < until {
		chain.Skipped = append(chain.Skipped, DeriveMessageKeys(chain.ChainKey, chain.Index))
		if len(chain.Skipped) > domain.MaxSkippedKeys {
			chain.Skipped = chain.Skipped[1:]
		}
		next := NextChainKey(chain.ChainKey)
		memzero.Zero(chain.ChainKey)
		chain.ChainKey = next
		chain.Index++
	}
	return nil
}

func takeSkipped(chain *domain.ReceiverChain, counter uint32) (domain.MessageKeys, bool) {
	for i := range chain.Skipped {
		if chain.Skipped[i].Index == counter {
			keys := chain.Skipped[i]
			chain.Skipped = append(chain.Skipped[:i], chain.Skipped[i+1:]...)
			return keys, true
		}
	}
	return domain.MessageKeys{}, false
}
