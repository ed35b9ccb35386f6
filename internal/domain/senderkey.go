package domain

const (
	// MaxSenderKeyStates bounds the chain states kept per
	// (sender, distribution id) record.
	MaxSenderKeyStates = 5

	// MaxSenderKeyJump bounds how far a group chain may be fast-forwarded
	// for a single incoming message.
	MaxSenderKeyJump = 25000

	// MaxSenderKeySkipped caps cached group message keys per state.
	MaxSenderKeySkipped = 2000
)

// SenderChainKey is the advancing symmetric chain of a sender-key state.
type SenderChainKey struct {
	Iteration uint32
	Seed      []byte
}

// SenderMessageKey is a cached group message key for one iteration.
type SenderMessageKey struct {
	Iteration uint32
	Seed      []byte
}

// SenderKeyState is one group chain: its id, the current chain key, the
// distribution's signing key (private half present only for the sender),
// and message keys skipped over during fast-forward.
type SenderKeyState struct {
	ChainID  uint32
	Chain    SenderChainKey
	SignPub  Ed25519Public
	SignPriv *Ed25519Private
	Skipped  []SenderMessageKey
}

// AddSkipped caches a message key, evicting the oldest beyond
// MaxSenderKeySkipped.
func (s *SenderKeyState) AddSkipped(k SenderMessageKey) {
	s.Skipped = append(s.Skipped, k)
	if len(s.Skipped) > MaxSenderKeySkipped {
		s.Skipped = s.Skipped[1:]
	}
}

// TakeSkipped removes and returns the cached key for iteration, if any.
func (s *SenderKeyState) TakeSkipped(iteration uint32) (SenderMessageKey, bool) {
	for i := range s.Skipped {
		if s.Skipped[i].Iteration == iteration {
			k := s.Skipped[i]
			s.Skipped = append(s.Skipped[:i], s.Skipped[i+1:]...)
			return k, true
		}
	}
	return SenderMessageKey{}, false
}

// SenderKeyRecord is the durable per-(sender, distribution id) group
// ratchet state: the current chain state plus a few prior ones, newest
// first.
type SenderKeyRecord struct {
	States []*SenderKeyState
}

// Current returns the newest state.
func (r *SenderKeyRecord) Current() (*SenderKeyState, bool) {
	if len(r.States) == 0 {
		return nil, false
	}
	return r.States[0], true
}

// State returns the state with the given chain id.
func (r *SenderKeyRecord) State(chainID uint32) (*SenderKeyState, bool) {
	for _, s := range r.States {
		if s.ChainID == chainID {
			return s, true
		}
	}
	return nil, false
}

// AddState prepends a state, evicting the oldest beyond
// MaxSenderKeyStates.
func (r *SenderKeyRecord) AddState(s *SenderKeyState) {
	r.States = append([]*SenderKeyState{s}, r.States...)
	if len(r.States) > MaxSenderKeyStates {
		r.States = r.States[:MaxSenderKeyStates]
	}
}
