// Package contract turns declarative contract specs into immutable,
// compiled contracts.
//
// A Spec names its fields and declares spending paths. New checks
// the fields, evaluates every path once, verifies that no path can
// lose or create value, computes the amounts the contract accepts,
// and compiles the disjunction of all paths into one witness
// script. Either all of that succeeds or New returns an error and
// no contract exists.
//
// A Contract is immutable and safe for concurrent use. It is also
// a template.Destination, so guarantee paths can pay into other
// contracts.
package contract

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/metrics"
	"github.com/jamesob/sapio/template"
	"github.com/jamesob/sapio/witness"
)

// Spec describes a kind of contract.
type Spec interface {
	Name() string
	Fields() []Field
	Paths() []Path
}

// Emulator supplies the clause standing in for a template
// commitment on networks without OP_CHECKTEMPLATEVERIFY.
// See package emulator.
type Emulator interface {
	Commitment(h [32]byte) (clause.Clause, error)
}

type options struct {
	emulator Emulator
	dust     amount.Amount
}

// Option configures New and FromAddress.
type Option func(*options)

// WithEmulator replaces each template commitment with the clause
// e returns for the template hash.
func WithEmulator(e Emulator) Option {
	return func(o *options) { o.emulator = e }
}

// WithDustLimit sets the smallest amount unlock paths and addresses
// accept. The default is amount.DefaultDust.
func WithDustLimit(a amount.Amount) Option {
	return func(o *options) { o.dust = a }
}

func buildOptions(opts []Option) options {
	o := options{dust: amount.DefaultDust}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Contract is a constructed, validated, compiled contract.
type Contract struct {
	name     string
	fields   []Field
	paths    []SpendingPath
	rng      amount.Range
	manager  *witness.Manager // nil for address contracts
	pkScript []byte
	addr     btcutil.Address // non-nil for address contracts
}

// New constructs a Contract from spec. Paths are evaluated in
// declaration order. Errors have root ErrFieldType, ErrSchema,
// ErrAmountInvariant, or witness.ErrCompilation.
func New(spec Spec, opts ...Option) (*Contract, error) {
	defer metrics.RecordElapsed(time.Now())

	c, err := build(spec, buildOptions(opts))
	if err != nil {
		metrics.Count("contract.new.fail")
		return nil, err
	}
	metrics.Count("contract.new.ok")
	return c, nil
}

func build(spec Spec, o options) (*Contract, error) {
	if spec == nil {
		return nil, errors.WithDetail(ErrSchema, "nil spec")
	}
	c := &Contract{name: spec.Name()}
	if c.name == "" {
		return nil, errors.WithDetail(ErrSchema, "contract has no name")
	}
	if !o.dust.Valid() {
		return nil, errors.WithDetailf(ErrAmountInvariant, "dust limit %d", o.dust)
	}

	var err error
	c.fields, err = checkFields(spec.Fields())
	if err != nil {
		return nil, errors.Wrap(err, c.name)
	}

	decl := spec.Paths()
	if len(decl) == 0 {
		return nil, errors.WithDetailf(ErrSchema, "%s declares no spending paths", c.name)
	}
	seen := make(map[string]bool)
	for _, p := range decl {
		if p.name == "" {
			return nil, errors.WithDetailf(ErrSchema, "%s has an unnamed path", c.name)
		}
		if seen[p.name] {
			return nil, errors.WithDetailf(ErrSchema, "%s declares path %q twice", c.name, p.name)
		}
		seen[p.name] = true

		sp, err := evaluate(p, o)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", c.name, p.name)
		}
		c.paths = append(c.paths, sp)
	}

	c.rng = contractRange(c.paths)

	c.manager, err = witness.NewManager(aggregate(c.paths))
	if err != nil {
		return nil, errors.Wrap(err, c.name)
	}
	c.pkScript = c.manager.PkScript()
	return c, nil
}

func evaluate(p Path, o options) (SpendingPath, error) {
	sp := SpendingPath{Name: p.name, Kind: p.kind}
	switch p.kind {
	case KindUnlock:
		if p.unlock == nil {
			return sp, errors.WithDetail(ErrSchema, "nil path function")
		}
		sp.Guard = p.unlock()
		if sp.Guard == nil {
			return sp, errors.WithDetail(ErrSchema, "unlock path returned no clause")
		}
		sp.Predicate = sp.Guard
		sp.Range = unlockRange(o.dust)
		return sp, nil

	case KindGuarantee:
		if p.guarantee == nil {
			return sp, errors.WithDetail(ErrSchema, "nil path function")
		}
		guard, tmpl, err := p.guarantee()
		if err != nil {
			return sp, templateError(err)
		}
		if tmpl == nil {
			return sp, errors.WithDetail(ErrSchema, "guarantee path returned no template")
		}
		sp.Guard, sp.Template = guard, tmpl
		sp.Range, err = guaranteeRange(tmpl)
		if err != nil {
			return sp, err
		}

		commit := clause.Commit(tmpl.CTVHash())
		if o.emulator != nil {
			commit, err = o.emulator.Commitment(tmpl.CTVHash())
			if err != nil {
				return sp, errors.Sub(ErrSchema, errors.Wrap(err, "emulated commitment"))
			}
		}
		sp.Predicate = commit
		if guard != nil {
			sp.Predicate = clause.AndOf(guard, commit)
		}
		return sp, nil
	}
	return sp, errors.WithDetailf(ErrSchema, "unknown path kind %d", int(p.kind))
}

// templateError classifies an error from a guarantee path function.
func templateError(err error) error {
	switch errors.Root(err) {
	case ErrSchema, ErrFieldType, ErrAmountInvariant, witness.ErrCompilation:
		return err
	case amount.ErrBadAmount:
		return errors.Sub(ErrAmountInvariant, err)
	}
	return errors.Sub(ErrSchema, err)
}

// aggregate joins the path predicates, in declaration order and
// without structural duplicates, into one right-nested Or.
func aggregate(paths []SpendingPath) clause.Clause {
	var preds []clause.Clause
	seen := make(map[clause.Clause]bool)
	for _, p := range paths {
		if !seen[p.Predicate] {
			seen[p.Predicate] = true
			preds = append(preds, p.Predicate)
		}
	}
	return clause.AnyOf(preds...)
}

// FromAddress wraps an address as an opaque destination that accepts
// any amount from the dust limit up. It has no paths and binds only
// as a terminal output.
func FromAddress(addr btcutil.Address, opts ...Option) (*Contract, error) {
	o := buildOptions(opts)
	if addr == nil {
		return nil, errors.WithDetail(ErrFieldType, "nil address")
	}
	if !o.dust.Valid() {
		return nil, errors.WithDetailf(ErrAmountInvariant, "dust limit %d", o.dust)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errors.Sub(ErrFieldType, errors.Wrapf(err, "address %s", addr))
	}
	return &Contract{
		name:     "address:" + addr.EncodeAddress(),
		rng:      unlockRange(o.dust),
		pkScript: script,
		addr:     addr,
	}, nil
}

// Name returns the contract's name.
func (c *Contract) Name() string { return c.name }

// Fields returns a copy of the contract's fields.
func (c *Contract) Fields() []Field { return append([]Field(nil), c.fields...) }

// Field returns the field called name.
func (c *Contract) Field(name string) (Field, bool) {
	for _, f := range c.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Paths returns the evaluated paths in declaration order.
func (c *Contract) Paths() []SpendingPath { return append([]SpendingPath(nil), c.paths...) }

// Path returns the evaluated path called name.
func (c *Contract) Path(name string) (SpendingPath, bool) {
	for _, p := range c.paths {
		if p.Name == name {
			return p, true
		}
	}
	return SpendingPath{}, false
}

// AmountRange returns the funding amounts c accepts.
// It implements template.Destination.
func (c *Contract) AmountRange() amount.Range { return c.rng }

// PkScript returns a copy of the output script paying to c.
// It implements template.Destination.
func (c *Contract) PkScript() []byte { return append([]byte(nil), c.pkScript...) }

// Witness returns the compiled witness script manager, or nil for
// address contracts.
func (c *Contract) Witness() *witness.Manager { return c.manager }

// Address returns the address paying to c on net.
func (c *Contract) Address(net *chaincfg.Params) (btcutil.Address, error) {
	if c.addr != nil {
		if !c.addr.IsForNet(net) {
			return nil, errors.WithDetailf(ErrFieldType, "address %s is not for %s", c.addr, net.Name)
		}
		return c.addr, nil
	}
	a, err := c.manager.Address(net)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (c *Contract) String() string {
	return fmt.Sprintf("%s %s", c.name, c.rng)
}

var _ template.Destination = (*Contract)(nil)
