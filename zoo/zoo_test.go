package zoo

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/contract"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/testutil"
	"github.com/jamesob/sapio/witness"
)

var funding = wire.OutPoint{Hash: chainhash.Hash{0xaa}, Index: 0}

func pk(i uint32) clause.PubKey {
	return clause.PubKeyFromBTCEC(testutil.Key(i).PubKey())
}

func mustNew(t testing.TB, s contract.Spec, opts ...contract.Option) *contract.Contract {
	c, err := contract.New(s, opts...)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	return c
}

func testAddress(t testing.TB, i byte) btcutil.Address {
	a, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{i}, 20), &chaincfg.MainNetParams)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	return a
}

// escrowT1 is the escrow paying 1 BTC to Alice and 10000 sats to Bob.
func escrowT1(t testing.TB) *contract.Contract {
	return mustNew(t, TrustlessEscrow{
		Alice:       pk(0),
		Bob:         pk(1),
		AliceEscrow: contract.Allocation{Amount: amount.Bitcoins(1), Contract: mustNew(t, PayToPublicKey{Key: pk(0)})},
		BobEscrow:   contract.Allocation{Amount: 10000, Contract: mustNew(t, PayToPublicKey{Key: pk(1)})},
	})
}

func TestTrustlessEscrow(t *testing.T) {
	c := escrowT1(t)
	total := amount.Bitcoins(1) + 10000
	if !c.AmountRange().Equal(amount.Exactly(total)) {
		t.Fatalf("AmountRange = %s want %s", c.AmountRange(), amount.Exactly(total))
	}

	b, err := c.Bind(contract.FundingRef{Outpoint: funding, Amount: total})
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if b.Path != "use_escrow" || b.Fee != 0 {
		t.Errorf("took %s with fee %d, want use_escrow with fee 0", b.Path, b.Fee)
	}
	if got := b.Tx.TxIn[0].Sequence; got != 1440 {
		t.Errorf("sequence = %d want 1440", got)
	}
	if b.Tx.TxIn[0].PreviousOutPoint != funding {
		t.Errorf("spends %s want %s", b.Tx.TxIn[0].PreviousOutPoint, funding)
	}
	if len(b.Tx.TxOut) != 2 {
		t.Fatalf("got %d outputs want 2", len(b.Tx.TxOut))
	}
	alice, _ := c.Field("alice_escrow")
	bob, _ := c.Field("bob_escrow")
	wantOuts := []contract.Allocation{alice.Value.(contract.Allocation), bob.Value.(contract.Allocation)}
	for i, want := range wantOuts {
		out := b.Tx.TxOut[i]
		if out.Value != int64(want.Amount) {
			t.Errorf("output %d value = %d want %d", i, out.Value, want.Amount)
		}
		testutil.ExpectScriptEqual(t, out.PkScript, want.Contract.PkScript(), "output script")
		if !b.Outputs[i].Terminal() || b.Outputs[i].Contract != want.Contract {
			t.Errorf("output %d bound = %+v", i, b.Outputs[i])
		}
	}

	p, _ := c.Path("use_escrow")
	if p.Guard != nil {
		t.Errorf("use_escrow guard = %s want none", p.Guard)
	}
	coop, _ := c.Path("cooperate")
	want := clause.AndOf(clause.SigCheck(pk(0)), clause.SigCheck(pk(1)))
	if !clause.Equal(coop.Predicate, want) {
		t.Errorf("cooperate = %s want %s", coop.Predicate, want)
	}
}

func TestTrustlessEscrowTimeoutAndFee(t *testing.T) {
	c := mustNew(t, TrustlessEscrow{
		Alice:       pk(0),
		Bob:         pk(1),
		AliceEscrow: contract.Allocation{Amount: 50000, Contract: mustNew(t, PayToPublicKey{Key: pk(0)})},
		BobEscrow:   contract.Allocation{Amount: 50000, Contract: mustNew(t, PayToPublicKey{Key: pk(1)})},
		Timeout:     clause.Weeks(1),
		Fee:         2000,
	})
	want := amount.Between(100000, 102000)
	if !c.AmountRange().Equal(want) {
		t.Errorf("AmountRange = %s want %s", c.AmountRange(), want)
	}
	b, err := c.Bind(contract.FundingRef{Outpoint: funding, Amount: 101000})
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if b.Fee != 1000 || b.Tx.TxIn[0].Sequence != clause.Weeks(1) {
		t.Errorf("fee %d sequence %d, want 1000 and %d", b.Fee, b.Tx.TxIn[0].Sequence, clause.Weeks(1))
	}
}

func TestNestedEscrow(t *testing.T) {
	t1 := escrowT1(t)
	t2 := mustNew(t, TrustlessEscrow{
		Alice:       pk(0),
		Bob:         pk(1),
		AliceEscrow: contract.Allocation{Amount: 10000, Contract: mustNew(t, PayToPublicKey{Key: pk(0)})},
		BobEscrow:   contract.Allocation{Amount: amount.Bitcoins(1) + 10000, Contract: t1},
	})

	total := amount.Bitcoins(1) + 20000
	b, err := t2.Bind(contract.FundingRef{Outpoint: funding, Amount: total})
	if err != nil {
		testutil.FatalErr(t, err)
	}
	txs := b.Transactions()
	if len(txs) != 2 {
		t.Fatalf("got %d transactions want 2", len(txs))
	}
	if txs[1].TxIn[0].PreviousOutPoint != (wire.OutPoint{Hash: txs[0].TxHash(), Index: 1}) {
		t.Errorf("t1 spends %s, want output 1 of %s", txs[1].TxIn[0].PreviousOutPoint, txs[0].TxHash())
	}
	for i, tx := range txs {
		if tx.TxIn[0].Sequence != DefaultEscrowTimeout {
			t.Errorf("tx %d sequence = %d want %d", i, tx.TxIn[0].Sequence, DefaultEscrowTimeout)
		}
	}
}

func TestUnderfundedEscrow(t *testing.T) {
	t1 := escrowT1(t)
	t3, err := contract.New(TrustlessEscrow{
		Alice:       pk(0),
		Bob:         pk(1),
		AliceEscrow: contract.Allocation{Amount: 10000, Contract: mustNew(t, PayToPublicKey{Key: pk(0)})},
		BobEscrow:   contract.Allocation{Amount: 10000, Contract: t1},
	})
	if errors.Root(err) != contract.ErrAmountInvariant {
		t.Errorf("error = %v want %v", err, contract.ErrAmountInvariant)
	}
	if t3 != nil {
		t.Error("got a contract despite the error")
	}
}

// spend signs a transaction spending c with keys and runs it
// through the script engine.
func spend(t *testing.T, c *contract.Contract, keys ...*btcec.PrivateKey) error {
	const value = 100000
	m := c.Witness()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&funding, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value-1000, c.PkScript()))
	fetch := txscript.NewCannedPrevOutputFetcher(c.PkScript(), value)
	hashes := txscript.NewTxSigHashes(tx, fetch)

	a := &clause.Assignment{Sigs: make(map[clause.PubKey][]byte), Sequence: tx.TxIn[0].Sequence}
	for _, k := range keys {
		sig, err := txscript.RawTxInWitnessSignature(tx, hashes, 0, value, m.Script(), txscript.SigHashAll, k)
		if err != nil {
			testutil.FatalErr(t, err)
		}
		a.Sigs[clause.PubKeyFromBTCEC(k.PubKey())] = sig
	}
	w, err := m.Witness(a)
	if err != nil {
		return err
	}
	tx.TxIn[0].Witness = w
	vm, err := txscript.NewEngine(c.PkScript(), tx, 0, txscript.StandardVerifyFlags, nil, hashes, value, fetch)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	return vm.Execute()
}

func TestBasicEscrows(t *testing.T) {
	alice, bob, escrow := testutil.Key(0), testutil.Key(1), testutil.Key(2)
	specs := []contract.Spec{
		BasicEscrow{Alice: pk(0), Bob: pk(1), Escrow: pk(2)},
		BasicEscrow2{Alice: pk(0), Bob: pk(1), Escrow: pk(2)},
	}
	cases := []struct {
		name string
		keys []*btcec.PrivateKey
		ok   bool
	}{
		{"escrow+alice", []*btcec.PrivateKey{escrow, alice}, true},
		{"escrow+bob", []*btcec.PrivateKey{escrow, bob}, true},
		{"alice+bob", []*btcec.PrivateKey{alice, bob}, true},
		{"alice only", []*btcec.PrivateKey{alice}, false},
		{"escrow only", []*btcec.PrivateKey{escrow}, false},
	}
	for _, s := range specs {
		c := mustNew(t, s)
		for _, tc := range cases {
			err := spend(t, c, tc.keys...)
			if tc.ok && err != nil {
				t.Errorf("%s %s: %v", s.Name(), tc.name, err)
			}
			if !tc.ok && errors.Root(err) != witness.ErrUnsatisfied {
				t.Errorf("%s %s: error = %v want %v", s.Name(), tc.name, err, witness.ErrUnsatisfied)
			}
		}
		if !c.AmountRange().Equal(amount.Between(amount.DefaultDust, amount.MaxMoney)) {
			t.Errorf("%s AmountRange = %s", s.Name(), c.AmountRange())
		}
	}
}

func TestPayToPublicKey(t *testing.T) {
	c := mustNew(t, PayToPublicKey{Key: pk(3)})
	want, err := witness.Compile(clause.SigCheck(pk(3)))
	if err != nil {
		testutil.FatalErr(t, err)
	}
	testutil.ExpectScriptEqual(t, c.Witness().Script(), want, "with_key script")

	b, err := c.Bind(contract.FundingRef{Outpoint: funding, Amount: 5000})
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if !b.Terminal() {
		t.Errorf("PayToPublicKey bound with tx %v", b.Tx)
	}

	_, err = contract.New(PayToPublicKey{})
	if errors.Root(err) != contract.ErrFieldType {
		t.Errorf("zero key: error = %v want %v", err, contract.ErrFieldType)
	}
}
