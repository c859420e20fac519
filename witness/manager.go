package witness

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/errors"
)

// Manager holds a compiled predicate and everything derived from
// it: the witness script, its P2WSH output script, and its address.
// A Manager is immutable.
type Manager struct {
	predicate clause.Clause
	script    []byte
	hash      [32]byte
	pkScript  []byte
}

// NewManager compiles c.
func NewManager(c clause.Clause) (*Manager, error) {
	script, err := Compile(c)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		predicate: c,
		script:    script,
		hash:      sha256.Sum256(script),
	}
	m.pkScript, err = txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(m.hash[:]).
		Script()
	if err != nil {
		return nil, errors.Sub(ErrCompilation, err)
	}
	return m, nil
}

// Predicate returns the clause the manager was built from.
func (m *Manager) Predicate() clause.Clause { return m.predicate }

// Script returns a copy of the witness script.
func (m *Manager) Script() []byte { return append([]byte(nil), m.script...) }

// ScriptHash returns the sha256 of the witness script.
func (m *Manager) ScriptHash() [32]byte { return m.hash }

// PkScript returns a copy of the P2WSH output script, OP_0 <hash>.
func (m *Manager) PkScript() []byte { return append([]byte(nil), m.pkScript...) }

// Address returns the bech32 P2WSH address on net.
func (m *Manager) Address(net *chaincfg.Params) (*btcutil.AddressWitnessScriptHash, error) {
	return btcutil.NewAddressWitnessScriptHash(m.hash[:], net)
}

// Disasm returns the witness script in one-line disassembly.
func (m *Manager) Disasm() string {
	s, _ := txscript.DisasmString(m.script)
	return s
}

// Witness returns the full input witness for spending with s:
// the stack items followed by the witness script.
func (m *Manager) Witness(s clause.Satisfier) (wire.TxWitness, error) {
	w, ok := m.Solve(s)
	if !ok {
		return nil, errors.WithDetail(ErrUnsatisfied, m.predicate.String())
	}
	return w, nil
}

// Solve is like Witness but always returns a witness. Missing
// signatures become empty pushes, and an unsatisfiable Or takes its
// left branch. The second result reports whether the witness
// satisfies the predicate.
func (m *Manager) Solve(s clause.Satisfier) (wire.TxWitness, bool) {
	stack, ok := solve(m.predicate, s)
	return append(wire.TxWitness(stack), m.Script()), ok
}

// solve returns the stack items for c, bottom first. The script for
// And(a, b) consumes a's items first, so they go on top of b's.
// For Or, the branch selector sits above the chosen branch's items.
func solve(c clause.Clause, s clause.Satisfier) ([][]byte, bool) {
	switch c := c.(type) {
	case clause.SignatureCheck:
		sig, ok := s.Signature(c.Key)
		if !ok {
			return [][]byte{{}}, false
		}
		return [][]byte{sig}, true
	case clause.And:
		a, okA := solve(c.Left, s)
		b, okB := solve(c.Right, s)
		return append(b, a...), okA && okB
	case clause.Or:
		l, ok := solve(c.Left, s)
		if ok {
			return append(l, []byte{1}), true
		}
		if r, ok := solve(c.Right, s); ok {
			return append(r, []byte{}), true
		}
		return append(l, []byte{1}), false
	case clause.RelativeTimelock:
		return nil, s.Older(c.Blocks)
	case clause.AbsoluteTimelock:
		return nil, s.After(c.Lock)
	case clause.TemplateCommitment:
		return nil, s.Template(c.Hash)
	}
	return nil, false
}
