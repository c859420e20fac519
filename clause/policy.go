package clause

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

func (c SignatureCheck) String() string { return "pk(" + c.Key.String() + ")" }
func (c And) String() string            { return "and(" + str(c.Left) + "," + str(c.Right) + ")" }
func (c Or) String() string             { return "or(" + str(c.Left) + "," + str(c.Right) + ")" }
func (c RelativeTimelock) String() string {
	return fmt.Sprintf("older(%d)", c.Blocks)
}
func (c AbsoluteTimelock) String() string {
	return fmt.Sprintf("after(%d)", c.Lock)
}
func (c TemplateCommitment) String() string {
	return "txtmpl(" + hex.EncodeToString(c.Hash[:]) + ")"
}

func str(c Clause) string {
	if c == nil {
		return "<nil>"
	}
	return c.String()
}

// Tags for the canonical encoding hashed by Hash.
const (
	tagNil byte = iota
	tagSig
	tagAnd
	tagOr
	tagOlder
	tagAfter
	tagCommit
)

// Hash returns the sha3-256 digest of a canonical, tagged encoding
// of c. Structurally equal clauses have equal hashes.
func Hash(c Clause) [32]byte {
	var out [32]byte
	h := sha3.New256()
	h.Write(appendCanonical(nil, c))
	h.Sum(out[:0])
	return out
}

func appendCanonical(b []byte, c Clause) []byte {
	switch c := c.(type) {
	case SignatureCheck:
		b = append(b, tagSig)
		return append(b, c.Key[:]...)
	case And:
		b = append(b, tagAnd)
		return appendCanonical(appendCanonical(b, c.Left), c.Right)
	case Or:
		b = append(b, tagOr)
		return appendCanonical(appendCanonical(b, c.Left), c.Right)
	case RelativeTimelock:
		b = append(b, tagOlder)
		return binary.BigEndian.AppendUint32(b, c.Blocks)
	case AbsoluteTimelock:
		b = append(b, tagAfter)
		return binary.BigEndian.AppendUint32(b, c.Lock)
	case TemplateCommitment:
		b = append(b, tagCommit)
		return append(b, c.Hash[:]...)
	}
	return append(b, tagNil)
}

// The JSON form follows the semantic-policy shape:
// {"type":"and","policies":[...]} for combinators and one object
// per leaf.

type policyJSON struct {
	Type     string   `json:"type"`
	Key      *PubKey  `json:"key,omitempty"`
	Blocks   *uint32  `json:"blocks,omitempty"`
	Lock     *uint32  `json:"lock,omitempty"`
	Hash     string   `json:"hash,omitempty"`
	Policies []Clause `json:"policies,omitempty"`
}

func (c SignatureCheck) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{Type: "pk", Key: &c.Key})
}

func (c And) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{Type: "and", Policies: []Clause{c.Left, c.Right}})
}

func (c Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{Type: "or", Policies: []Clause{c.Left, c.Right}})
}

func (c RelativeTimelock) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{Type: "older", Blocks: &c.Blocks})
}

func (c AbsoluteTimelock) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{Type: "after", Lock: &c.Lock})
}

func (c TemplateCommitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(policyJSON{Type: "txtmpl", Hash: hex.EncodeToString(c.Hash[:])})
}
