// Package witness lowers clauses to witness scripts and assembles
// the witness stacks that satisfy them.
package witness

import (
	"time"

	"github.com/btcsuite/btcd/txscript"
	"github.com/golang/groupcache/lru"

	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/metrics"
)

var (
	// ErrCompilation is returned for clause trees that have no
	// script form: nil nodes, relative locks beyond 0xffff blocks,
	// or scripts larger than txscript.MaxScriptSize.
	ErrCompilation = errors.New("compilation error")

	// ErrUnsatisfied is returned by Witness when the available
	// signatures and timelocks cannot satisfy the predicate.
	ErrUnsatisfied = errors.New("predicate not satisfied")
)

// Compile lowers c to a script:
//
//	SignatureCheck      <key> OP_CHECKSIG
//	And                 [left] OP_TOALTSTACK [right] OP_FROMALTSTACK OP_BOOLAND
//	Or                  OP_IF [left] OP_ELSE [right] OP_ENDIF
//	RelativeTimelock    <n> OP_CHECKSEQUENCEVERIFY OP_DROP OP_TRUE
//	AbsoluteTimelock    <n> OP_CHECKLOCKTIMEVERIFY OP_DROP OP_TRUE
//	TemplateCommitment  <hash> OP_NOP4 OP_DROP OP_TRUE
//
// Zero timelocks compile to OP_TRUE. The result depends only on the
// structure of c, so equal trees compile to identical scripts.
func Compile(c clause.Clause) ([]byte, error) {
	defer metrics.RecordElapsed(time.Now())

	comp := &compiler{memo: lru.New(0)}
	script, err := comp.compile(c)
	if err != nil {
		return nil, err
	}
	if len(script) > txscript.MaxScriptSize {
		return nil, errors.WithDetailf(ErrCompilation, "script is %d bytes, limit %d", len(script), txscript.MaxScriptSize)
	}
	return script, nil
}

// compiler memoizes the fragments of identical subtrees within one
// Compile call.
type compiler struct {
	memo *lru.Cache
}

func (comp *compiler) compile(c clause.Clause) ([]byte, error) {
	if c == nil {
		return nil, errors.WithDetail(ErrCompilation, "nil clause")
	}
	if frag, ok := comp.memo.Get(c); ok {
		return frag.([]byte), nil
	}

	b := txscript.NewScriptBuilder()
	switch c := c.(type) {
	case clause.SignatureCheck:
		b.AddData(c.Key[:]).AddOp(txscript.OP_CHECKSIG)
	case clause.And:
		l, err := comp.compile(c.Left)
		if err != nil {
			return nil, errors.Wrap(err, "and")
		}
		r, err := comp.compile(c.Right)
		if err != nil {
			return nil, errors.Wrap(err, "and")
		}
		// The left result waits on the alt stack so the right side
		// sees its own witness items on top.
		b.AddOps(l).AddOp(txscript.OP_TOALTSTACK).
			AddOps(r).AddOp(txscript.OP_FROMALTSTACK).
			AddOp(txscript.OP_BOOLAND)
	case clause.Or:
		l, err := comp.compile(c.Left)
		if err != nil {
			return nil, errors.Wrap(err, "or")
		}
		r, err := comp.compile(c.Right)
		if err != nil {
			return nil, errors.Wrap(err, "or")
		}
		b.AddOp(txscript.OP_IF).AddOps(l).AddOp(txscript.OP_ELSE).AddOps(r).AddOp(txscript.OP_ENDIF)
	case clause.RelativeTimelock:
		if c.Blocks > clause.SequenceLockTimeMask {
			return nil, errors.WithDetailf(ErrCompilation, "relative lock of %d blocks", c.Blocks)
		}
		addLock(b, c.Blocks, txscript.OP_CHECKSEQUENCEVERIFY)
	case clause.AbsoluteTimelock:
		addLock(b, c.Lock, txscript.OP_CHECKLOCKTIMEVERIFY)
	case clause.TemplateCommitment:
		b.AddData(c.Hash[:]).AddOp(txscript.OP_NOP4).AddOp(txscript.OP_DROP).AddOp(txscript.OP_TRUE)
	default:
		return nil, errors.WithDetailf(ErrCompilation, "unknown clause %T", c)
	}

	frag, err := b.Script()
	if err != nil {
		return nil, errors.Sub(ErrCompilation, err)
	}
	comp.memo.Add(c, frag)
	return frag, nil
}

func addLock(b *txscript.ScriptBuilder, n uint32, op byte) {
	if n == 0 {
		b.AddOp(txscript.OP_TRUE)
		return
	}
	b.AddInt64(int64(n)).AddOp(op).AddOp(txscript.OP_DROP).AddOp(txscript.OP_TRUE)
}
