package proto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrEmptyEnvelope = errors.New("empty transaction envelope")

// BundleParser is the boundary to the surrounding transaction library.
// TxID derives the canonical transaction id for an envelope; same bytes
// always yield the same id. ExtractTx pulls one transaction's envelope
// (with its dependency chain) out of a larger shared bundle.
type BundleParser interface {
	TxID(envelope []byte) (string, error)
	ExtractTx(bundle []byte, txID [32]byte) ([]byte, error)
}

// AdvertisementDecoder is the boundary to the admin-token library: it
// decodes a host-claim token out of a transaction output's locking
// condition.
type AdvertisementDecoder interface {
	DecodeAdvertisement(out Output) (Advertisement, error)
}

// HashBundleParser is the default BundleParser for self-contained
// envelopes: the id is the reversed double SHA-256 of the envelope
// bytes, and extraction returns the bundle as-is. Deployments whose
// hosts answer with multi-transaction bundles supply their own parser.
type HashBundleParser struct{}

func (HashBundleParser) TxID(envelope []byte) (string, error) {
	if len(envelope) == 0 {
		return "", ErrEmptyEnvelope
	}
	first := sha256.Sum256(envelope)
	second := sha256.Sum256(first[:])
	for i, j := 0, len(second)-1; i < j; i, j = i+1, j-1 {
		second[i], second[j] = second[j], second[i]
	}
	return hex.EncodeToString(second[:]), nil
}

func (HashBundleParser) ExtractTx(bundle []byte, _ [32]byte) ([]byte, error) {
	if len(bundle) == 0 {
		return nil, ErrEmptyEnvelope
	}
	return bundle, nil
}
