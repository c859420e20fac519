// Package json has JSON helper types for the descriptive output of
// contracts and templates.
package json

import (
	"encoding/hex"

	"github.com/jamesob/sapio/errors"
)

// HexBytes is a byte string that encodes as lowercase hex.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *HexBytes) UnmarshalText(text []byte) error {
	b := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(b, text); err != nil {
		return errors.Wrap(err, "decoding hex")
	}
	*h = b
	return nil
}

func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}
