// Package emulator stands in for the template-commitment opcode on
// networks that do not enforce it.
//
// Instead of <hash> OP_CHECKTEMPLATEVERIFY, a guarantee path
// requires a signature from a key derived from the template hash.
// An oracle holding the matching extended private key signs any
// transaction whose template hash leads to that key, and nothing
// else, so the spend is constrained to the committed template as
// long as the oracle is honest.
package emulator

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"

	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/metrics"
	"github.com/jamesob/sapio/template"
)

var (
	// ErrDerive is returned when no child key exists for a
	// template hash (an invalid-child derivation, about 1 in 2^127).
	ErrDerive = errors.New("cannot derive emulator key")

	// ErrPacket is returned for packets the oracle will not sign.
	ErrPacket = errors.New("unsignable packet")
)

// ChildPath returns the derivation path for template hash h: the
// eight big-endian 32-bit words of h with their top bit cleared,
// then a ninth index collecting those eight top bits.
// Every index is non-hardened, so public derivation works.
func ChildPath(h [32]byte) [9]uint32 {
	var path [9]uint32
	for i := 0; i < 8; i++ {
		w := binary.BigEndian.Uint32(h[4*i:])
		path[i] = w &^ (1 << 31)
		path[8] += (w >> 31) << uint(i)
	}
	return path
}

func derive(root *hdkeychain.ExtendedKey, h [32]byte) (*hdkeychain.ExtendedKey, error) {
	k := root
	for _, i := range ChildPath(h) {
		var err error
		k, err = k.Derive(i)
		if err != nil {
			return nil, errors.Sub(ErrDerive, err)
		}
	}
	return k, nil
}

// HDOracle derives commitment keys from an oracle's extended
// public key.
type HDOracle struct {
	root *hdkeychain.ExtendedKey
}

// NewHDOracle returns an HDOracle for the extended key root.
// A private root is neutered first.
func NewHDOracle(root *hdkeychain.ExtendedKey) (*HDOracle, error) {
	pub, err := root.Neuter()
	if err != nil {
		return nil, errors.Wrap(err, "neuter oracle key")
	}
	return &HDOracle{root: pub}, nil
}

// ParseHDOracle reads a base58 extended public key.
func ParseHDOracle(xpub string) (*HDOracle, error) {
	root, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, errors.Wrap(err, "parse oracle key")
	}
	return NewHDOracle(root)
}

// Key returns the oracle key committed to by h.
func (o *HDOracle) Key(h [32]byte) (clause.PubKey, error) {
	k, err := derive(o.root, h)
	if err != nil {
		return clause.PubKey{}, errors.WithDetailf(err, "template %x", h)
	}
	pub, err := k.ECPubKey()
	if err != nil {
		return clause.PubKey{}, errors.Sub(ErrDerive, err)
	}
	return clause.PubKeyFromBTCEC(pub), nil
}

// Commitment returns the clause that stands in for a commitment to
// template hash h: a signature check on the oracle key for h.
func (o *HDOracle) Commitment(h [32]byte) (clause.Clause, error) {
	k, err := o.Key(h)
	if err != nil {
		return nil, err
	}
	return clause.SigCheck(k), nil
}

// String returns the oracle's extended public key.
func (o *HDOracle) String() string {
	return o.root.String()
}

// Signer is the oracle side: it holds the extended private key and
// signs input 0 of any packet with the key for that packet's own
// template hash.
type Signer struct {
	root *hdkeychain.ExtendedKey
}

// NewSigner returns a Signer for the private extended key root.
func NewSigner(root *hdkeychain.ExtendedKey) (*Signer, error) {
	if !root.IsPrivate() {
		return nil, errors.New("emulator signer needs a private key")
	}
	return &Signer{root: root}, nil
}

// Oracle returns the public half of s.
func (s *Signer) Oracle() *HDOracle {
	o, _ := NewHDOracle(s.root) // cannot fail for a private key
	return o
}

// Sign adds the oracle's partial signature to input 0 of p. The
// input must carry its witness script and witness UTXO.
func (s *Signer) Sign(p *psbt.Packet) error {
	metrics.Count("emulator.sign")
	tx := p.UnsignedTx
	if len(tx.TxIn) == 0 || len(p.Inputs) == 0 {
		return errors.WithDetail(ErrPacket, "no inputs")
	}
	in := &p.Inputs[0]
	if in.WitnessUtxo == nil || len(in.WitnessScript) == 0 {
		return errors.WithDetail(ErrPacket, "input 0 lacks witness utxo or script")
	}

	k, err := derive(s.root, template.CheckTemplateHash(tx, 0))
	if err != nil {
		return err
	}
	priv, err := k.ECPrivKey()
	if err != nil {
		return errors.Sub(ErrDerive, err)
	}
	pub := priv.PubKey().SerializeCompressed()
	if !scriptHasKey(in.WitnessScript, pub) {
		return errors.WithDetail(ErrPacket, "witness script does not commit to this transaction")
	}

	fetch := txscript.NewCannedPrevOutputFetcher(in.WitnessUtxo.PkScript, in.WitnessUtxo.Value)
	hashes := txscript.NewTxSigHashes(tx, fetch)
	sig, err := txscript.RawTxInWitnessSignature(tx, hashes, 0, in.WitnessUtxo.Value, in.WitnessScript, txscript.SigHashAll, priv)
	if err != nil {
		return errors.Wrap(err, "sign")
	}
	in.PartialSigs = mergeSigs(in.PartialSigs, []*psbt.PartialSig{{PubKey: pub, Signature: sig}})
	return nil
}

// PrivKey returns the oracle private key for h. It exists for
// tests and tooling that need to sign without a packet.
func (s *Signer) PrivKey(h [32]byte) (*btcec.PrivateKey, error) {
	k, err := derive(s.root, h)
	if err != nil {
		return nil, err
	}
	priv, err := k.ECPrivKey()
	return priv, errors.Sub(ErrDerive, err)
}

// scriptHasKey reports whether script pushes pub.
func scriptHasKey(script, pub []byte) bool {
	tok := txscript.MakeScriptTokenizer(0, script)
	for tok.Next() {
		if string(tok.Data()) == string(pub) {
			return true
		}
	}
	return false
}

func mergeSigs(have, add []*psbt.PartialSig) []*psbt.PartialSig {
	out := append([]*psbt.PartialSig(nil), have...)
	for _, s := range add {
		dup := false
		for _, h := range out {
			if string(h.PubKey) == string(s.PubKey) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
