package template

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/jamesob/sapio/encoding/bufpool"
)

// CheckTemplateHash computes the BIP-119 default template hash of
// tx as spent at input index idx. The hash covers version, lock
// time, scriptSigs (only when any is non-empty), input count,
// sequences, output count, outputs, and idx; it does not cover the
// outpoints being spent.
func CheckTemplateHash(tx *wire.MsgTx, idx uint32) [32]byte {
	buf := bufpool.Get()
	defer bufpool.Put(buf)

	putUint32(buf, uint32(tx.Version))
	putUint32(buf, tx.LockTime)

	var hasScriptSigs bool
	for _, in := range tx.TxIn {
		if len(in.SignatureScript) > 0 {
			hasScriptSigs = true
			break
		}
	}
	if hasScriptSigs {
		buf.Write(hashOf(func(w *bytes.Buffer) {
			for _, in := range tx.TxIn {
				wire.WriteVarBytes(w, 0, in.SignatureScript)
			}
		}))
	}

	putUint32(buf, uint32(len(tx.TxIn)))
	buf.Write(hashOf(func(w *bytes.Buffer) {
		for _, in := range tx.TxIn {
			putUint32(w, in.Sequence)
		}
	}))

	putUint32(buf, uint32(len(tx.TxOut)))
	buf.Write(hashOf(func(w *bytes.Buffer) {
		for _, out := range tx.TxOut {
			wire.WriteTxOut(w, 0, tx.Version, out)
		}
	}))

	putUint32(buf, idx)

	var h [32]byte
	copy(h[:], chainhash.HashB(buf.Bytes()))
	return h
}

// hashOf returns the sha256 of whatever fill writes.
func hashOf(fill func(*bytes.Buffer)) []byte {
	b := bufpool.Get()
	defer bufpool.Put(b)
	fill(b)
	return chainhash.HashB(b.Bytes())
}

func putUint32(w *bytes.Buffer, v uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	w.Write(scratch[:])
}
