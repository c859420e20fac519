package clause

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/jamesob/sapio/errors"
)

// ErrBadPubKey is returned when bytes do not encode a compressed
// secp256k1 point.
var ErrBadPubKey = errors.New("bad public key")

// PubKey is a compressed secp256k1 public key.
type PubKey [btcec.PubKeyBytesLenCompressed]byte

// ParsePubKey validates b as a compressed public key.
func ParsePubKey(b []byte) (PubKey, error) {
	var k PubKey
	if len(b) != len(k) {
		return k, errors.WithDetailf(ErrBadPubKey, "got %d bytes, want %d", len(b), len(k))
	}
	if _, err := btcec.ParsePubKey(b); err != nil {
		return k, errors.WithDetail(ErrBadPubKey, err.Error())
	}
	copy(k[:], b)
	return k, nil
}

// PubKeyFromBTCEC returns the compressed form of k.
func PubKeyFromBTCEC(k *btcec.PublicKey) PubKey {
	var pk PubKey
	copy(pk[:], k.SerializeCompressed())
	return pk
}

// BTCEC returns k as a btcec public key.
func (k PubKey) BTCEC() (*btcec.PublicKey, error) {
	pub, err := btcec.ParsePubKey(k[:])
	return pub, errors.Sub(ErrBadPubKey, err)
}

func (k PubKey) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText encodes k as hex.
func (k PubKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes and validates a hex-encoded key.
func (k *PubKey) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return errors.WithDetail(ErrBadPubKey, err.Error())
	}
	*k, err = ParsePubKey(b)
	return err
}
