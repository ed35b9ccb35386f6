package domain

import "bytes"

const (
	// SessionVersion is the protocol version stamped into every session
	// state and wire message.
	SessionVersion = 3

	// MaxReceiverChains bounds how many old receiving chains a state
	// keeps around for late messages from previous ratchet turns.
	MaxReceiverChains = 5

	// MaxSkippedKeys caps the skipped message-key cache per receiving
	// chain. A gap that would require more derivations is rejected.
	MaxSkippedKeys = 1000

	// MaxArchivedStates bounds the archived prior states kept on a
	// session record.
	MaxArchivedStates = 40
)

// MessageKeys is the per-message key material derived from a chain key:
// an AEAD key and a MAC key, tied to one chain index. Used once.
type MessageKeys struct {
	CipherKey []byte
	MacKey    []byte
	Index     uint32
}

// SenderChain is the sending half of the ratchet: the current ratchet key
// pair, the advancing chain key, and the next message index.
type SenderChain struct {
	RatchetPub  X25519Public
	RatchetPriv X25519Private
	ChainKey    []byte
	Index       uint32
}

// ReceiverChain tracks one remote ratchet key: its chain key, the next
// expected index, and message keys skipped over for out-of-order arrival.
type ReceiverChain struct {
	RatchetPub X25519Public
	ChainKey   []byte
	Index      uint32
	Skipped    []MessageKeys
}

// PendingPreKey records the prekey references an initiator must keep
// attaching to outgoing messages until the responder's first reply proves
// the session is established.
type PendingPreKey struct {
	PreKeyID       *uint32
	SignedPreKeyID uint32
	BaseKey        X25519Public
}

// SessionState is one ratchet state: a root key, one sending chain, and a
// bounded list of receiving chains (newest first).
type SessionState struct {
	Version uint32

	RootKey        []byte
	LocalIdentity  X25519Public
	RemoteIdentity X25519Public

	LocalRegistrationID  uint32
	RemoteRegistrationID uint32

	// AliceBaseKey lets a responder recognise a prekey message that
	// bootstrapped this very state and skip re-initialisation.
	AliceBaseKey X25519Public

	PreviousCounter uint32

	Sender    *SenderChain
	Receivers []ReceiverChain

	Pending *PendingPreKey
}

// HasSenderChain reports whether the state can encrypt yet.
func (s *SessionState) HasSenderChain() bool { return s.Sender != nil }

// ReceiverChain returns the chain for the given remote ratchet key.
func (s *SessionState) ReceiverChain(ratchetPub X25519Public) (*ReceiverChain, bool) {
	for i := range s.Receivers {
		if s.Receivers[i].RatchetPub == ratchetPub {
			return &s.Receivers[i], true
		}
	}
	return nil, false
}

// AddReceiverChain prepends a receiving chain, evicting the oldest beyond
// MaxReceiverChains.
func (s *SessionState) AddReceiverChain(c ReceiverChain) {
	s.Receivers = append([]ReceiverChain{c}, s.Receivers...)
	if len(s.Receivers) > MaxReceiverChains {
		s.Receivers = s.Receivers[:MaxReceiverChains]
	}
}

// SessionRecord is the durable ratchet state for one address: at most one
// current state plus archived prior states still able to decrypt
// in-flight messages.
type SessionRecord struct {
	Current  *SessionState
	Archived []*SessionState
}

// NewSessionRecord returns a record with the given current state.
func NewSessionRecord(state *SessionState) *SessionRecord {
	return &SessionRecord{Current: state}
}

// HasCurrent reports whether the record holds an established state.
func (r *SessionRecord) HasCurrent() bool { return r.Current != nil }

// ArchiveCurrent demotes the current state to the head of the archive,
// evicting the oldest archived state beyond MaxArchivedStates.
func (r *SessionRecord) ArchiveCurrent() {
	if r.Current == nil {
		return
	}
	r.Archived = append([]*SessionState{r.Current}, r.Archived...)
	if len(r.Archived) > MaxArchivedStates {
		r.Archived = r.Archived[:MaxArchivedStates]
	}
	r.Current = nil
}

// Promote makes the archived state at index i the current state, archiving
// any present current state first.
func (r *SessionRecord) Promote(i int) {
	state := r.Archived[i]
	r.Archived = append(r.Archived[:i], r.Archived[i+1:]...)
	r.ArchiveCurrent()
	r.Current = state
}

// StateForBaseKey returns the state (current or archived) bootstrapped
// from the given initiator base key, if any.
func (r *SessionRecord) StateForBaseKey(baseKey X25519Public) (*SessionState, bool) {
	if r.Current != nil && bytes.Equal(r.Current.AliceBaseKey[:], baseKey[:]) {
		return r.Current, true
	}
	for _, s := range r.Archived {
		if bytes.Equal(s.AliceBaseKey[:], baseKey[:]) {
			return s, true
		}
	}
	return nil, false
}
