// Package zoo collects ready-made contracts: single-key payments,
// escrows, and payment trees.
package zoo

import (
	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/contract"
	"github.com/jamesob/sapio/template"
)

// PayToPublicKey is spendable by a signature from Key.
type PayToPublicKey struct {
	Key clause.PubKey
}

func (s PayToPublicKey) Name() string { return "PayToPublicKey" }

func (s PayToPublicKey) Fields() []contract.Field {
	return []contract.Field{contract.PubKeyField("key", s.Key)}
}

func (s PayToPublicKey) Paths() []contract.Path {
	return []contract.Path{
		contract.Unlock("with_key", func() clause.Clause { return clause.SigCheck(s.Key) }),
	}
}

// BasicEscrow is a two-of-three between Alice, Bob, and Escrow,
// written as a single path.
type BasicEscrow struct {
	Alice, Bob, Escrow clause.PubKey
}

func (s BasicEscrow) Name() string { return "BasicEscrow" }

func (s BasicEscrow) Fields() []contract.Field {
	return escrowFields(s.Alice, s.Bob, s.Escrow)
}

func (s BasicEscrow) Paths() []contract.Path {
	return []contract.Path{
		contract.Unlock("redeem", func() clause.Clause {
			return clause.OrOf(
				clause.AndOf(clause.SigCheck(s.Escrow), clause.OrOf(clause.SigCheck(s.Alice), clause.SigCheck(s.Bob))),
				clause.AndOf(clause.SigCheck(s.Alice), clause.SigCheck(s.Bob)),
			)
		}),
	}
}

// BasicEscrow2 is BasicEscrow with the escrow and cooperative cases
// as separate paths.
type BasicEscrow2 struct {
	Alice, Bob, Escrow clause.PubKey
}

func (s BasicEscrow2) Name() string { return "BasicEscrow2" }

func (s BasicEscrow2) Fields() []contract.Field {
	return escrowFields(s.Alice, s.Bob, s.Escrow)
}

func (s BasicEscrow2) Paths() []contract.Path {
	return []contract.Path{
		contract.Unlock("use_escrow", func() clause.Clause {
			return clause.AndOf(clause.SigCheck(s.Escrow), clause.OrOf(clause.SigCheck(s.Alice), clause.SigCheck(s.Bob)))
		}),
		contract.Unlock("cooperate", func() clause.Clause {
			return clause.AndOf(clause.SigCheck(s.Alice), clause.SigCheck(s.Bob))
		}),
	}
}

func escrowFields(alice, bob, escrow clause.PubKey) []contract.Field {
	return []contract.Field{
		contract.PubKeyField("alice", alice),
		contract.PubKeyField("bob", bob),
		contract.PubKeyField("escrow", escrow),
	}
}

// DefaultEscrowTimeout is the relative timelock of TrustlessEscrow
// when Timeout is zero.
var DefaultEscrowTimeout = clause.Days(10)

// TrustlessEscrow lets Alice and Bob spend together at any time, or
// lets anyone split the funds into the two escrow allocations once
// the funding output is Timeout blocks deep.
type TrustlessEscrow struct {
	Alice, Bob  clause.PubKey
	AliceEscrow contract.Allocation
	BobEscrow   contract.Allocation

	// Timeout is the relative lock of the split, in blocks.
	Timeout uint32

	// Fee is the largest miner fee the split may carry.
	Fee amount.Amount
}

func (s TrustlessEscrow) Name() string { return "TrustlessEscrow" }

func (s TrustlessEscrow) Fields() []contract.Field {
	return []contract.Field{
		contract.PubKeyField("alice", s.Alice),
		contract.PubKeyField("bob", s.Bob),
		contract.AllocationField("alice_escrow", s.AliceEscrow),
		contract.AllocationField("bob_escrow", s.BobEscrow),
		contract.IntField("timeout", int64(s.timeout())),
		contract.AmountField("fee", s.Fee),
	}
}

func (s TrustlessEscrow) timeout() uint32 {
	if s.Timeout == 0 {
		return DefaultEscrowTimeout
	}
	return s.Timeout
}

func (s TrustlessEscrow) Paths() []contract.Path {
	return []contract.Path{
		contract.Guarantee("use_escrow", s.useEscrow),
		contract.Unlock("cooperate", func() clause.Clause {
			return clause.AndOf(clause.SigCheck(s.Alice), clause.SigCheck(s.Bob))
		}),
	}
}

func (s TrustlessEscrow) useEscrow() (clause.Clause, *template.Template, error) {
	tmpl, err := template.NewBuilder().
		AddOutput(s.AliceEscrow.Amount, dest(s.AliceEscrow.Contract)).
		AddOutput(s.BobEscrow.Amount, dest(s.BobEscrow.Contract)).
		SetSequence(s.timeout()).
		SetFeeMargin(s.Fee).
		Build()
	return nil, tmpl, err
}

// dest keeps a nil *Contract from becoming a non-nil Destination.
func dest(c *contract.Contract) template.Destination {
	if c == nil {
		return nil
	}
	return c
}
