// Package template builds the continuation transactions that
// guarantee paths commit to.
//
// A Builder collects outputs and timelocks; Build seals them into a
// Template whose BIP-119 template hash is computed once. Templates
// are immutable and safe to share between goroutines.
package template

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/errors"
)

var (
	// ErrEmpty is returned by Build when no outputs were added.
	ErrEmpty = errors.New("template has no outputs")

	// ErrNoDestination is returned by Build when an output has a
	// nil destination or an empty script.
	ErrNoDestination = errors.New("template output has no destination")
)

// DefaultVersion is the transaction version of new templates.
// Version 2 enables BIP-68 relative lock times.
const DefaultVersion = 2

// Destination is anything an output can pay to. Contracts are
// destinations; so are plain addresses.
type Destination interface {
	PkScript() []byte
	AmountRange() amount.Range
}

// Output is one (amount, destination) entry of a template.
type Output struct {
	Amount amount.Amount
	Dest   Destination
}

// Builder accumulates the parts of a Template.
// The zero value is not ready for use; call NewBuilder.
type Builder struct {
	outputs   []Output
	version   int32
	sequence  uint32
	lockTime  uint32
	feeMargin amount.Amount
}

// NewBuilder returns a builder for a version 2 template with a
// final input sequence, no lock time, and no fee margin.
func NewBuilder() *Builder {
	return &Builder{
		version:  DefaultVersion,
		sequence: wire.MaxTxInSequenceNum,
	}
}

// AddOutput appends an output paying a to d.
func (b *Builder) AddOutput(a amount.Amount, d Destination) *Builder {
	b.outputs = append(b.outputs, Output{Amount: a, Dest: d})
	return b
}

// SetSequence sets the input sequence, which carries a relative
// timelock in blocks (see clause.Days).
func (b *Builder) SetSequence(seq uint32) *Builder {
	b.sequence = seq
	return b
}

// SetLockTime sets the transaction lock time. If the sequence is
// still final when Build runs, it is lowered by one so that the
// lock time is enforced.
func (b *Builder) SetLockTime(lock uint32) *Builder {
	b.lockTime = lock
	return b
}

// SetFeeMargin sets how much more than the output total the
// funding input may carry; the difference goes to miners.
func (b *Builder) SetFeeMargin(a amount.Amount) *Builder {
	b.feeMargin = a
	return b
}

// SetVersion overrides DefaultVersion.
func (b *Builder) SetVersion(v int32) *Builder {
	b.version = v
	return b
}

// Build validates and seals the template.
func (b *Builder) Build() (*Template, error) {
	if len(b.outputs) == 0 {
		return nil, errors.Wrap(ErrEmpty)
	}
	if !b.feeMargin.Valid() {
		return nil, errors.WithDetailf(amount.ErrBadAmount, "fee margin %d", b.feeMargin)
	}

	t := &Template{
		outputs:   append([]Output(nil), b.outputs...),
		version:   b.version,
		sequence:  b.sequence,
		lockTime:  b.lockTime,
		feeMargin: b.feeMargin,
	}
	if t.lockTime != 0 && t.sequence == wire.MaxTxInSequenceNum {
		t.sequence = wire.MaxTxInSequenceNum - 1
	}

	for i, out := range t.outputs {
		if !out.Amount.Valid() {
			return nil, errors.WithDetailf(amount.ErrBadAmount, "output %d: %d sats", i, out.Amount)
		}
		if out.Dest == nil {
			return nil, errors.WithDetailf(ErrNoDestination, "output %d", i)
		}
		script := out.Dest.PkScript()
		if len(script) == 0 {
			return nil, errors.WithDetailf(ErrNoDestination, "output %d", i)
		}
		total, ok := amount.Sum(t.total, out.Amount)
		if !ok {
			return nil, errors.WithDetailf(amount.ErrBadAmount, "output total exceeds %d sats", amount.MaxMoney)
		}
		t.total = total
		t.txOuts = append(t.txOuts, wire.NewTxOut(int64(out.Amount), append([]byte(nil), script...)))
	}
	if _, ok := amount.Sum(t.total, t.feeMargin); !ok {
		return nil, errors.WithDetailf(amount.ErrBadAmount, "output total plus fee margin exceeds %d sats", amount.MaxMoney)
	}

	t.hash = CheckTemplateHash(t.MsgTx(wire.OutPoint{}), 0)
	return t, nil
}

// Template is a sealed continuation transaction: one input
// (supplied at bind time) and a fixed list of outputs.
type Template struct {
	outputs   []Output
	txOuts    []*wire.TxOut
	version   int32
	sequence  uint32
	lockTime  uint32
	feeMargin amount.Amount
	total     amount.Amount
	hash      [32]byte
}

// Outputs returns a copy of the template's outputs.
func (t *Template) Outputs() []Output { return append([]Output(nil), t.outputs...) }

// Total returns the sum of the output amounts.
func (t *Template) Total() amount.Amount { return t.total }

func (t *Template) Version() int32           { return t.version }
func (t *Template) Sequence() uint32         { return t.sequence }
func (t *Template) LockTime() uint32         { return t.lockTime }
func (t *Template) FeeMargin() amount.Amount { return t.feeMargin }

// CTVHash returns the BIP-119 template hash for input index 0.
func (t *Template) CTVHash() [32]byte { return t.hash }

// AmountRange returns the funding amounts this template accepts
// before considering its destinations: [total, total+feeMargin].
func (t *Template) AmountRange() amount.Range {
	return amount.Between(t.total, t.total+t.feeMargin)
}

// MsgTx returns the continuation transaction spending prev.
// Each call returns a new transaction.
func (t *Template) MsgTx(prev wire.OutPoint) *wire.MsgTx {
	tx := wire.NewMsgTx(t.version)
	in := wire.NewTxIn(&prev, nil, nil)
	in.Sequence = t.sequence
	tx.AddTxIn(in)
	for _, out := range t.txOuts {
		tx.AddTxOut(wire.NewTxOut(out.Value, append([]byte(nil), out.PkScript...)))
	}
	tx.LockTime = t.lockTime
	return tx
}

func (t *Template) String() string {
	var outs []string
	for _, out := range t.txOuts {
		outs = append(outs, fmt.Sprintf("%d->%s", out.Value, hex.EncodeToString(out.PkScript)))
	}
	return fmt.Sprintf("tmpl{v=%d seq=%d lock=%d fee<=%d outs=[%s] hash=%x}",
		t.version, t.sequence, t.lockTime, t.feeMargin, strings.Join(outs, " "), t.hash)
}

// Equal reports whether t and u describe the same transaction.
func (t *Template) Equal(u *Template) bool {
	if t == nil || u == nil {
		return t == u
	}
	if t.hash != u.hash || t.feeMargin != u.feeMargin || len(t.txOuts) != len(u.txOuts) {
		return false
	}
	for i := range t.txOuts {
		if t.txOuts[i].Value != u.txOuts[i].Value || !bytes.Equal(t.txOuts[i].PkScript, u.txOuts[i].PkScript) {
			return false
		}
	}
	return true
}
