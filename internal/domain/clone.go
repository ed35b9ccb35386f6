package domain

// Decrypt attempts run against a deep copy of session state so a failed
// attempt (bad MAC, replay) leaves the stored record untouched; only a
// successful copy is written back.

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := *s
	out.RootKey = append([]byte(nil), s.RootKey...)
	if s.Sender != nil {
		sc := *s.Sender
		sc.ChainKey = append([]byte(nil), s.Sender.ChainKey...)
		out.Sender = &sc
	}
	out.Receivers = make([]ReceiverChain, len(s.Receivers))
	for i, rc := range s.Receivers {
		cp := rc
		cp.ChainKey = append([]byte(nil), rc.ChainKey...)
		cp.Skipped = make([]MessageKeys, len(rc.Skipped))
		for j, mk := range rc.Skipped {
			cp.Skipped[j] = MessageKeys{
				CipherKey: append([]byte(nil), mk.CipherKey...),
				MacKey:    append([]byte(nil), mk.MacKey...),
				Index:     mk.Index,
			}
		}
		out.Receivers[i] = cp
	}
	if s.Pending != nil {
		p := *s.Pending
		if s.Pending.PreKeyID != nil {
			id := *s.Pending.PreKeyID
			p.PreKeyID = &id
		}
		out.Pending = &p
	}
	return &out
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	out := &SessionRecord{Current: r.Current.Clone()}
	out.Archived = make([]*SessionState, len(r.Archived))
	for i, s := range r.Archived {
		out.Archived[i] = s.Clone()
	}
	return out
}
