package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"vesper/internal/domain"
)

// Records are persisted as CBOR blobs. Encoding through the codec also
// gives the memory backend snapshot semantics for free: what goes in and
// out is always a fresh copy.

func encodeRecord(v any) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

func cborUnmarshal(b []byte, v any) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

func decodeSessionRecord(b []byte) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

func decodeSenderKeyRecord(b []byte) (*domain.SenderKeyRecord, error) {
	var rec domain.SenderKeyRecord
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode sender key record: %w", err)
	}
	return &rec, nil
}

func decodePreKeyRecord(b []byte) (domain.PreKeyRecord, error) {
	var rec domain.PreKeyRecord
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return domain.PreKeyRecord{}, fmt.Errorf("decode prekey record: %w", err)
	}
	return rec, nil
}

func decodeSignedPreKeyRecord(b []byte) (domain.SignedPreKeyRecord, error) {
	var rec domain.SignedPreKeyRecord
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return domain.SignedPreKeyRecord{}, fmt.Errorf("decode signed prekey record: %w", err)
	}
	return rec, nil
}

func senderKeyKey(sender domain.Address, dist domain.DistributionID) string {
	return sender.String() + "/" + dist.String()
}
