package emulator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/template"
	"github.com/jamesob/sapio/testutil"
	"github.com/jamesob/sapio/witness"
)

func TestChildPath(t *testing.T) {
	var h [32]byte
	copy(h[0:], []byte{0x80, 0x00, 0x00, 0x01})
	copy(h[4:], []byte{0xff, 0xff, 0xff, 0xff})
	copy(h[28:], []byte{0x80, 0x00, 0x00, 0x00})

	got := ChildPath(h)
	want := [9]uint32{1, 0x7fffffff, 0, 0, 0, 0, 0, 0, 1<<0 | 1<<1 | 1<<7}
	if got != want {
		t.Errorf("ChildPath = %v want %v", got, want)
	}
}

func TestHDOracleKeys(t *testing.T) {
	signer, err := NewSigner(testutil.TestXPrv)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	oracle, err := ParseHDOracle(testutil.TestXPub.String())
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if oracle.String() != signer.Oracle().String() {
		t.Fatalf("oracle %s does not match signer %s", oracle, signer.Oracle())
	}

	h1, h2 := [32]byte{1}, [32]byte{2}
	k1, err := oracle.Key(h1)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	k2, err := oracle.Key(h2)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if k1 == k2 {
		t.Error("distinct template hashes produced the same key")
	}

	priv, err := signer.PrivKey(h1)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if clause.PubKeyFromBTCEC(priv.PubKey()) != k1 {
		t.Error("private derivation disagrees with public derivation")
	}

	c, err := oracle.Commitment(h1)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if !clause.Equal(c, clause.SigCheck(k1)) {
		t.Errorf("Commitment = %s want pk(%s)", c, k1)
	}

	if _, err := NewSigner(testutil.TestXPub); err == nil {
		t.Error("NewSigner accepted a public key")
	}
}

type payTo []byte

func (p payTo) PkScript() []byte          { return p }
func (p payTo) AmountRange() amount.Range { return amount.Between(0, amount.MaxMoney) }

// emulatedSpend returns a packet spending an output locked to the
// oracle key for a one-output template, and that output's value.
func emulatedSpend(t *testing.T, oracle *HDOracle) (*psbt.Packet, *witness.Manager) {
	tmpl, err := template.NewBuilder().
		AddOutput(90000, payTo{txscript.OP_0, txscript.OP_DATA_20, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}).
		SetSequence(6).
		Build()
	if err != nil {
		testutil.FatalErr(t, err)
	}
	c, err := oracle.Commitment(tmpl.CTVHash())
	if err != nil {
		testutil.FatalErr(t, err)
	}
	m, err := witness.NewManager(c)
	if err != nil {
		testutil.FatalErr(t, err)
	}

	p, err := psbt.NewFromUnsignedTx(tmpl.MsgTx(wire.OutPoint{Hash: chainhash.Hash{5}}))
	if err != nil {
		testutil.FatalErr(t, err)
	}
	p.Inputs[0].WitnessUtxo = wire.NewTxOut(100000, m.PkScript())
	p.Inputs[0].WitnessScript = m.Script()
	return p, m
}

func verify(p *psbt.Packet, m *witness.Manager) error {
	tx := p.UnsignedTx.Copy()
	tx.TxIn[0].Witness = wire.TxWitness{p.Inputs[0].PartialSigs[0].Signature, m.Script()}
	fetch := txscript.NewCannedPrevOutputFetcher(m.PkScript(), 100000)
	vm, err := txscript.NewEngine(m.PkScript(), tx, 0, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, fetch), 100000, fetch)
	if err != nil {
		return err
	}
	return vm.Execute()
}

func TestSignerSign(t *testing.T) {
	signer, err := NewSigner(testutil.TestXPrv)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	p, m := emulatedSpend(t, signer.Oracle())

	if err := signer.Sign(p); err != nil {
		testutil.FatalErr(t, err)
	}
	if n := len(p.Inputs[0].PartialSigs); n != 1 {
		t.Fatalf("got %d partial sigs, want 1", n)
	}
	if err := verify(p, m); err != nil {
		t.Errorf("oracle signature does not satisfy the script: %v", err)
	}

	// Signing twice does not duplicate the signature.
	if err := signer.Sign(p); err != nil {
		testutil.FatalErr(t, err)
	}
	if n := len(p.Inputs[0].PartialSigs); n != 1 {
		t.Errorf("got %d partial sigs after re-signing, want 1", n)
	}
}

func TestSignerRefusesOtherTransactions(t *testing.T) {
	signer, err := NewSigner(testutil.TestXPrv)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	p, _ := emulatedSpend(t, signer.Oracle())
	p.UnsignedTx.TxOut[0].Value = 95000

	testutil.ExpectError(t, ErrPacket, "modified transaction", func() error {
		return signer.Sign(p)
	})
	if len(p.Inputs[0].PartialSigs) != 0 {
		t.Error("refused packet was signed anyway")
	}

	p, _ = emulatedSpend(t, signer.Oracle())
	p.Inputs[0].WitnessScript = nil
	testutil.ExpectError(t, ErrPacket, "missing witness script", func() error {
		return signer.Sign(p)
	})
}

func TestServerClient(t *testing.T) {
	signer, err := NewSigner(testutil.TestXPrv)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- (&Server{Signer: signer}).Serve(ctx, ln)
	}()

	client, err := Dial(ctx, ln.Addr().String(), signer.Oracle())
	if err != nil {
		testutil.FatalErr(t, err)
	}
	defer client.Close()

	for i := 0; i < 2; i++ {
		p, m := emulatedSpend(t, client.HDOracle)
		reqCtx, done := context.WithTimeout(ctx, 5*time.Second)
		err = client.Sign(reqCtx, p)
		done()
		if err != nil {
			testutil.FatalErr(t, err)
		}
		if err := verify(p, m); err != nil {
			t.Errorf("request %d: remote signature does not verify: %v", i, err)
		}
	}

	cancel()
	select {
	case err := <-served:
		if errors.Root(err) != context.Canceled {
			t.Errorf("Serve returned %v, want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestConnSetAfterShutdown(t *testing.T) {
	var cs connSet
	a, b := net.Pipe()
	defer b.Close()
	if !cs.add(context.Background(), a) {
		t.Fatal("add refused a connection before shutdown")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	late, lateRemote := net.Pipe()
	defer lateRemote.Close()
	if cs.add(ctx, late) {
		t.Error("add accepted a connection after cancel")
	}
	if _, err := late.Write([]byte{0}); err == nil {
		t.Error("connection refused after cancel should be closed")
	}

	cs.closeAll()
	if _, err := a.Write([]byte{0}); err == nil {
		t.Error("closeAll left a connection open")
	}
	c, cRemote := net.Pipe()
	defer cRemote.Close()
	if cs.add(context.Background(), c) {
		t.Error("add accepted a connection after closeAll")
	}
}
