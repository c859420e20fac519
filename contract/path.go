package contract

import (
	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/template"
)

// Kind tells the two sorts of spending path apart.
type Kind int

const (
	// KindUnlock paths release the funds to whoever satisfies the
	// path's clause, with no constraint on the next transaction.
	KindUnlock Kind = iota
	// KindGuarantee paths can only be spent by their template.
	KindGuarantee
)

func (k Kind) String() string {
	if k == KindGuarantee {
		return "guarantee"
	}
	return "unlock"
}

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Path is a declared spending path, evaluated once by New.
// Build one with Unlock or Guarantee.
type Path struct {
	name      string
	kind      Kind
	unlock    func() clause.Clause
	guarantee func() (clause.Clause, *template.Template, error)
}

// Unlock declares a path spendable by anyone satisfying the clause
// returned by fn.
func Unlock(name string, fn func() clause.Clause) Path {
	return Path{name: name, kind: KindUnlock, unlock: fn}
}

// Guarantee declares a path that must be spent by the template
// returned by fn, after also satisfying the returned guard clause.
// A nil guard means the template commitment alone is required.
func Guarantee(name string, fn func() (clause.Clause, *template.Template, error)) Path {
	return Path{name: name, kind: KindGuarantee, guarantee: fn}
}

// Name returns the path's declared name.
func (p Path) Name() string { return p.name }

// Kind returns whether p is an unlock or a guarantee path.
func (p Path) Kind() Kind { return p.kind }

// SpendingPath is an evaluated path of a constructed Contract.
type SpendingPath struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Guard is the clause returned by the path function. It is nil
	// for a guarantee path with no extra condition.
	Guard clause.Clause `json:"guard,omitempty"`

	// Predicate is what the witness script checks for this path:
	// the guard for unlock paths, and the guard AND the template
	// commitment for guarantee paths.
	Predicate clause.Clause `json:"predicate"`

	// Template is the enforced continuation; nil for unlock paths.
	Template *template.Template `json:"-"`

	// Range holds the funding amounts this path can consume.
	Range amount.Range `json:"range"`
}
