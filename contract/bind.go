package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/metrics"
)

// FundingRef locates the output that funds a contract.
type FundingRef struct {
	Outpoint wire.OutPoint
	Amount   amount.Amount
}

// Bound is a contract instantiated at a funding output, with its
// continuation transaction and the bound contracts it pays to.
type Bound struct {
	Funding FundingRef

	// Contract is the bound contract, or nil when the funding
	// output pays a destination that is not a Contract.
	Contract *Contract

	// PkScript is the funding output's script.
	PkScript []byte

	// Path names the guarantee path taken. It is empty for
	// terminal bounds.
	Path string

	// Tx spends Funding according to Path. It is nil for
	// terminal bounds, which are left to whoever can satisfy an
	// unlock path.
	Tx *wire.MsgTx

	// Fee is Funding.Amount less the outputs of Tx.
	Fee amount.Amount

	// Outputs holds one bound per output of Tx.
	Outputs []*Bound
}

// Bind instantiates c at ref. The first declared guarantee path
// whose range contains ref.Amount is taken, and each of its outputs
// is bound in turn. A contract without guarantee paths binds as a
// terminal if it accepts the amount. Otherwise Bind fails with
// ErrBind and returns no partial tree.
func (c *Contract) Bind(ref FundingRef) (*Bound, error) {
	defer metrics.RecordElapsed(time.Now())

	b, err := c.bind(ref)
	if err != nil {
		metrics.Count("contract.bind.fail")
		return nil, err
	}
	metrics.Count("contract.bind.ok")
	return b, nil
}

func (c *Contract) bind(ref FundingRef) (*Bound, error) {
	var hasGuarantee bool
	for _, p := range c.paths {
		if p.Kind != KindGuarantee {
			continue
		}
		hasGuarantee = true
		if !p.Range.Contains(ref.Amount) {
			continue
		}

		tx := p.Template.MsgTx(ref.Outpoint)
		txid := tx.TxHash()
		b := &Bound{
			Funding:  ref,
			Contract: c,
			PkScript: c.PkScript(),
			Path:     p.Name,
			Tx:       tx,
			Fee:      ref.Amount - p.Template.Total(),
		}
		for i, out := range p.Template.Outputs() {
			child := FundingRef{
				Outpoint: wire.OutPoint{Hash: txid, Index: uint32(i)},
				Amount:   out.Amount,
			}
			if dest, ok := out.Dest.(*Contract); ok {
				cb, err := dest.bind(child)
				if err != nil {
					return nil, errors.Wrapf(err, "%s.%s output %d", c.name, p.Name, i)
				}
				b.Outputs = append(b.Outputs, cb)
				continue
			}
			b.Outputs = append(b.Outputs, &Bound{Funding: child, PkScript: out.Dest.PkScript()})
		}
		return b, nil
	}

	if !hasGuarantee && c.rng.Contains(ref.Amount) {
		return &Bound{Funding: ref, Contract: c, PkScript: c.PkScript()}, nil
	}
	return nil, errors.WithDetailf(ErrBind, "%s cannot accept %d sats; it accepts %s", c.name, ref.Amount, c.rng)
}

// Terminal reports whether b has no continuation transaction.
func (b *Bound) Terminal() bool { return b.Tx == nil }

// Walk calls fn on b and then on each bound below it, depth first.
// It stops at the first error.
func (b *Bound) Walk(fn func(*Bound) error) error {
	if err := fn(b); err != nil {
		return err
	}
	for _, out := range b.Outputs {
		if err := out.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Transactions returns every continuation transaction in the tree,
// each after the transaction it spends.
func (b *Bound) Transactions() []*wire.MsgTx {
	var txs []*wire.MsgTx
	b.Walk(func(n *Bound) error {
		if n.Tx != nil {
			txs = append(txs, n.Tx)
		}
		return nil
	})
	return txs
}

// PSBTs returns one unsigned packet per continuation transaction,
// in the order of Transactions. Input 0 of each carries the funding
// output and the witness script, which is all a signer or emulator
// oracle needs.
func (b *Bound) PSBTs() ([]*psbt.Packet, error) {
	var packets []*psbt.Packet
	err := b.Walk(func(n *Bound) error {
		if n.Tx == nil {
			return nil
		}
		p, err := psbt.NewFromUnsignedTx(n.Tx.Copy())
		if err != nil {
			return errors.Wrapf(err, "packet for %s", n.Tx.TxHash())
		}
		p.Inputs[0].WitnessUtxo = wire.NewTxOut(int64(n.Funding.Amount), n.PkScript)
		p.Inputs[0].WitnessScript = n.Contract.Witness().Script()
		packets = append(packets, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packets, nil
}

func (b *Bound) String() string {
	var sb strings.Builder
	b.write(&sb, 0)
	return sb.String()
}

func (b *Bound) write(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	name := "output"
	if b.Contract != nil {
		name = b.Contract.Name()
	}
	fmt.Fprintf(sb, "%s%s @ %s (%d sats)", indent, name, b.Funding.Outpoint, b.Funding.Amount)
	if b.Tx != nil {
		fmt.Fprintf(sb, " --%s--> tx %s fee=%d", b.Path, b.Tx.TxHash(), b.Fee)
	}
	sb.WriteByte('\n')
	for _, out := range b.Outputs {
		out.write(sb, depth+1)
	}
}
