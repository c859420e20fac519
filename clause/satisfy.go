package clause

import "github.com/btcsuite/btcd/wire"

const (
	// SequenceLockTimeDisabled, SequenceLockTimeIsSeconds, and
	// SequenceLockTimeMask interpret an input sequence as in BIP-68.
	SequenceLockTimeDisabled  = 1 << 31
	SequenceLockTimeIsSeconds = 1 << 22
	SequenceLockTimeMask      = 0x0000ffff

	// LockTimeThreshold separates block heights from unix times
	// in a transaction lock time.
	LockTimeThreshold = 500000000
)

// Satisfier answers the questions a clause asks of a spending
// transaction.
type Satisfier interface {
	// Signature returns a signature for k, if one is available.
	Signature(k PubKey) ([]byte, bool)
	// Older reports whether a relative timelock of n blocks is met.
	Older(n uint32) bool
	// After reports whether an absolute lock time of n is met.
	After(n uint32) bool
	// Template reports whether the spending transaction matches
	// the template hash h.
	Template(h [32]byte) bool
}

// Assignment is a Satisfier built from known facts about one
// spending input.
type Assignment struct {
	Sigs      map[PubKey][]byte
	Sequence  uint32 // sequence of the spending input
	LockTime  uint32 // lock time of the spending transaction
	Templates map[[32]byte]bool
}

// Signature implements Satisfier.
func (a *Assignment) Signature(k PubKey) ([]byte, bool) {
	sig, ok := a.Sigs[k]
	return sig, ok
}

// Older implements Satisfier. Block-based relative locks are met by
// a block-based input sequence at least as large.
func (a *Assignment) Older(n uint32) bool {
	if n == 0 {
		return true
	}
	if a.Sequence&SequenceLockTimeDisabled != 0 || a.Sequence&SequenceLockTimeIsSeconds != 0 {
		return false
	}
	return a.Sequence&SequenceLockTimeMask >= n
}

// After implements Satisfier. The transaction lock time must be in
// the same domain as n and not below it, and the input must not
// be final.
func (a *Assignment) After(n uint32) bool {
	if n == 0 {
		return true
	}
	if a.Sequence == wire.MaxTxInSequenceNum {
		return false
	}
	if (n < LockTimeThreshold) != (a.LockTime < LockTimeThreshold) {
		return false
	}
	return a.LockTime >= n
}

// Template implements Satisfier.
func (a *Assignment) Template(h [32]byte) bool {
	return a.Templates[h]
}

// Satisfied reports whether s meets every condition c requires.
// A nil clause is never satisfied.
func Satisfied(c Clause, s Satisfier) bool {
	switch c := c.(type) {
	case SignatureCheck:
		_, ok := s.Signature(c.Key)
		return ok
	case And:
		return Satisfied(c.Left, s) && Satisfied(c.Right, s)
	case Or:
		return Satisfied(c.Left, s) || Satisfied(c.Right, s)
	case RelativeTimelock:
		return s.Older(c.Blocks)
	case AbsoluteTimelock:
		return s.After(c.Lock)
	case TemplateCommitment:
		return s.Template(c.Hash)
	}
	return false
}
