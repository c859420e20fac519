package template

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/testutil"
)

type payTo []byte

func (p payTo) PkScript() []byte          { return p }
func (p payTo) AmountRange() amount.Range { return amount.Between(amount.DefaultDust, amount.MaxMoney) }

var (
	alice = payTo{0x00, 0x14, 0x01}
	bob   = payTo{0x00, 0x14, 0x02}
)

func TestBuild(t *testing.T) {
	tmpl, err := NewBuilder().
		AddOutput(amount.Bitcoins(1), alice).
		AddOutput(amount.Sats(5000), bob).
		SetSequence(1440).
		SetFeeMargin(1000).
		Build()
	if err != nil {
		testutil.FatalErr(t, err)
	}

	if tmpl.Total() != amount.Bitcoins(1)+5000 {
		t.Errorf("Total = %d", tmpl.Total())
	}
	if tmpl.Sequence() != 1440 || tmpl.Version() != DefaultVersion || tmpl.LockTime() != 0 {
		t.Errorf("got %s", tmpl)
	}
	want := amount.Between(amount.Bitcoins(1)+5000, amount.Bitcoins(1)+6000)
	if !tmpl.AmountRange().Equal(want) {
		t.Errorf("AmountRange = %s want %s", tmpl.AmountRange(), want)
	}

	prev := wire.OutPoint{Hash: chainhash.Hash{7}, Index: 3}
	tx := tmpl.MsgTx(prev)
	if len(tx.TxIn) != 1 || tx.TxIn[0].PreviousOutPoint != prev || tx.TxIn[0].Sequence != 1440 {
		t.Errorf("bad input %+v", tx.TxIn)
	}
	if len(tx.TxOut) != 2 || tx.TxOut[0].Value != amount.SatsPerBitcoin || !bytes.Equal(tx.TxOut[1].PkScript, bob) {
		t.Errorf("bad outputs %+v", tx.TxOut)
	}

	// MsgTx must hand out independent copies.
	tx.TxOut[0].PkScript[0] = 0xff
	if tmpl.MsgTx(prev).TxOut[0].PkScript[0] != 0x00 {
		t.Error("MsgTx shares script storage with the template")
	}
}

func TestBuildErrors(t *testing.T) {
	cases := []struct {
		name string
		b    *Builder
		want error
	}{
		{"empty", NewBuilder(), ErrEmpty},
		{"nil destination", NewBuilder().AddOutput(10, nil), ErrNoDestination},
		{"empty script", NewBuilder().AddOutput(10, payTo{}), ErrNoDestination},
		{"negative", NewBuilder().AddOutput(-1, alice), amount.ErrBadAmount},
		{"too large", NewBuilder().AddOutput(amount.MaxMoney, alice).AddOutput(1, bob), amount.ErrBadAmount},
		{"fee overflow", NewBuilder().AddOutput(amount.MaxMoney, alice).SetFeeMargin(1), amount.ErrBadAmount},
		{"negative fee", NewBuilder().AddOutput(10, alice).SetFeeMargin(-1), amount.ErrBadAmount},
	}
	for _, c := range cases {
		testutil.ExpectError(t, c.want, c.name, func() error {
			_, err := c.b.Build()
			return err
		})
	}
}

func TestLockTimeLowersSequence(t *testing.T) {
	tmpl, err := NewBuilder().AddOutput(1000, alice).SetLockTime(700000).Build()
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if tmpl.Sequence() != wire.MaxTxInSequenceNum-1 {
		t.Errorf("Sequence = %x want %x", tmpl.Sequence(), wire.MaxTxInSequenceNum-1)
	}

	tmpl, err = NewBuilder().AddOutput(1000, alice).SetLockTime(700000).SetSequence(144).Build()
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if tmpl.Sequence() != 144 {
		t.Errorf("explicit Sequence = %d want 144", tmpl.Sequence())
	}
}

func TestBuilderIsolation(t *testing.T) {
	b := NewBuilder().AddOutput(1000, alice)
	first, err := b.Build()
	if err != nil {
		testutil.FatalErr(t, err)
	}
	b.AddOutput(2000, bob)
	if len(first.Outputs()) != 1 {
		t.Errorf("sealed template changed after builder reuse: %s", first)
	}
}

// ctvHash recomputes the template hash directly from the BIP-119
// field layout, for a single input with no scriptSig.
func ctvHash(version int32, lockTime, sequence uint32, outs []*wire.TxOut) [32]byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, version)
	binary.Write(&buf, binary.LittleEndian, lockTime)
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], sequence)
	seqHash := sha256.Sum256(seq[:])
	buf.Write(seqHash[:])
	binary.Write(&buf, binary.LittleEndian, uint32(len(outs)))
	var ser bytes.Buffer
	for _, o := range outs {
		binary.Write(&ser, binary.LittleEndian, o.Value)
		ser.WriteByte(byte(len(o.PkScript)))
		ser.Write(o.PkScript)
	}
	outHash := sha256.Sum256(ser.Bytes())
	buf.Write(outHash[:])
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	return sha256.Sum256(buf.Bytes())
}

func TestCTVHash(t *testing.T) {
	tmpl, err := NewBuilder().
		AddOutput(60000, alice).
		AddOutput(40000, bob).
		SetSequence(1440).
		Build()
	if err != nil {
		testutil.FatalErr(t, err)
	}
	want := ctvHash(2, 0, 1440, []*wire.TxOut{
		wire.NewTxOut(60000, alice),
		wire.NewTxOut(40000, bob),
	})
	if got := tmpl.CTVHash(); got != want {
		t.Errorf("CTVHash = %x want %x", got, want)
	}

	// The hash does not commit to the outpoint being spent.
	prev := wire.OutPoint{Hash: chainhash.Hash{1}, Index: 9}
	if got := CheckTemplateHash(tmpl.MsgTx(prev), 0); got != want {
		t.Errorf("hash over bound tx = %x want %x", got, want)
	}

	other, err := NewBuilder().
		AddOutput(40000, bob).
		AddOutput(60000, alice).
		SetSequence(1440).
		Build()
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if other.CTVHash() == tmpl.CTVHash() {
		t.Error("output order must change the template hash")
	}
	if other.Equal(tmpl) || !tmpl.Equal(tmpl) {
		t.Error("Equal disagrees with template contents")
	}
}

func TestCTVHashScriptSigs(t *testing.T) {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, alice))
	bare := CheckTemplateHash(tx, 0)

	tx.TxIn[0].SignatureScript = []byte{0x51}
	if CheckTemplateHash(tx, 0) == bare {
		t.Error("a non-empty scriptSig must change the template hash")
	}
	if CheckTemplateHash(tx, 1) == CheckTemplateHash(tx, 0) {
		t.Error("the input index must change the template hash")
	}
}

func TestBuildErrorDetail(t *testing.T) {
	_, err := NewBuilder().AddOutput(10, alice).AddOutput(10, nil).Build()
	if got := errors.Detail(err); got != "output 1" {
		t.Errorf("Detail = %q want %q", got, "output 1")
	}
}
