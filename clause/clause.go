// Package clause implements spending predicates as immutable trees.
//
// A Clause is one of SignatureCheck, And, Or, RelativeTimelock,
// AbsoluteTimelock, or TemplateCommitment. Every variant is a plain
// comparable value, so two clauses are structurally equal exactly
// when they compare equal with ==. Trees are built with the leaf
// constructors (SigCheck, Older, After, Commit) and the combinators
// (AndOf, OrOf, AllOf, AnyOf); none of them can fail.
package clause

// Clause is a boolean spending predicate.
type Clause interface {
	// String returns the clause in policy notation,
	// for example and(pk(02ab..),older(1440)).
	String() string
	isClause()
}

// SignatureCheck is satisfied by a valid signature from Key.
type SignatureCheck struct {
	Key PubKey
}

// And is satisfied when both Left and Right are.
type And struct {
	Left, Right Clause
}

// Or is satisfied when either Left or Right is.
type Or struct {
	Left, Right Clause
}

// RelativeTimelock is satisfied once the spent output is at least
// Blocks blocks deep (BIP-68/BIP-112).
type RelativeTimelock struct {
	Blocks uint32
}

// AbsoluteTimelock is satisfied by a transaction whose lock time is
// at least Lock, with both in the same height or time domain
// (BIP-65).
type AbsoluteTimelock struct {
	Lock uint32
}

// TemplateCommitment is satisfied only by a spending transaction
// whose template hash (BIP-119) equals Hash.
type TemplateCommitment struct {
	Hash [32]byte
}

func (SignatureCheck) isClause()     {}
func (And) isClause()                {}
func (Or) isClause()                 {}
func (RelativeTimelock) isClause()   {}
func (AbsoluteTimelock) isClause()   {}
func (TemplateCommitment) isClause() {}

// SigCheck returns a clause requiring a signature from k.
func SigCheck(k PubKey) Clause { return SignatureCheck{Key: k} }

// Older returns a clause requiring a relative timelock of n blocks.
func Older(n uint32) Clause { return RelativeTimelock{Blocks: n} }

// After returns a clause requiring an absolute lock time of at least n.
func After(n uint32) Clause { return AbsoluteTimelock{Lock: n} }

// Commit returns a clause requiring the spending transaction to
// match the template hash h.
func Commit(h [32]byte) Clause { return TemplateCommitment{Hash: h} }

// AndOf returns the conjunction of a and b.
func AndOf(a, b Clause) Clause { return And{Left: a, Right: b} }

// OrOf returns the disjunction of a and b.
func OrOf(a, b Clause) Clause { return Or{Left: a, Right: b} }

// AllOf folds cs into a right-nested conjunction, keeping the
// argument order: AllOf(a, b, c) is And(a, And(b, c)).
// It returns nil if cs is empty.
func AllOf(cs ...Clause) Clause {
	return fold(cs, AndOf)
}

// AnyOf folds cs into a right-nested disjunction, keeping the
// argument order. It returns nil if cs is empty.
func AnyOf(cs ...Clause) Clause {
	return fold(cs, OrOf)
}

func fold(cs []Clause, f func(a, b Clause) Clause) Clause {
	if len(cs) == 0 {
		return nil
	}
	acc := cs[len(cs)-1]
	for i := len(cs) - 2; i >= 0; i-- {
		acc = f(cs[i], acc)
	}
	return acc
}

// Equal reports whether a and b are the same tree.
func Equal(a, b Clause) bool {
	return a == b
}

// Keys returns the public keys named in c, in the order they
// appear, without duplicates.
func Keys(c Clause) []PubKey {
	var keys []PubKey
	seen := make(map[PubKey]bool)
	var walk func(Clause)
	walk = func(c Clause) {
		switch c := c.(type) {
		case SignatureCheck:
			if !seen[c.Key] {
				seen[c.Key] = true
				keys = append(keys, c.Key)
			}
		case And:
			walk(c.Left)
			walk(c.Right)
		case Or:
			walk(c.Left)
			walk(c.Right)
		}
	}
	walk(c)
	return keys
}

// Unit conversions for relative timelocks, assuming the
// ten-minute target block interval.
const (
	BlocksPerHour = 6
	BlocksPerDay  = 24 * BlocksPerHour
	BlocksPerWeek = 7 * BlocksPerDay
)

// Blocks returns n blocks.
func Blocks(n uint32) uint32 { return n }

// Hours returns the block count of n hours.
func Hours(n uint32) uint32 { return n * BlocksPerHour }

// Days returns the block count of n days.
func Days(n uint32) uint32 { return n * BlocksPerDay }

// Weeks returns the block count of n weeks.
func Weeks(n uint32) uint32 { return n * BlocksPerWeek }
