package zoo

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/contract"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/template"
)

// Payment is one participant of a TreePay.
type Payment struct {
	Amount  amount.Amount
	Address btcutil.Address
}

// TreePay pays many participants with a tree of transactions. Each
// node with more than Radix participants splits them into chunks of
// len/Radix and pays each chunk to a smaller TreePay; smaller nodes
// pay their participants directly.
type TreePay struct {
	Participants []contract.Allocation
	Radix        int

	// Options are applied to every node below this one.
	Options []contract.Option
}

// NewTreePay builds the tree paying payments.
func NewTreePay(payments []Payment, radix int, opts ...contract.Option) (*contract.Contract, error) {
	allocs := make([]contract.Allocation, 0, len(payments))
	for i, p := range payments {
		dest, err := contract.FromAddress(p.Address, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "payment %d", i)
		}
		allocs = append(allocs, contract.Allocation{Amount: p.Amount, Contract: dest})
	}
	return contract.New(TreePay{Participants: allocs, Radix: radix, Options: opts}, opts...)
}

func (s TreePay) Name() string { return "TreePay" }

func (s TreePay) Fields() []contract.Field {
	return []contract.Field{
		contract.AllocationListField("participants", s.Participants),
		contract.IntField("radix", int64(s.Radix)),
	}
}

func (s TreePay) Paths() []contract.Path {
	return []contract.Path{contract.Guarantee("expand", s.expand)}
}

func (s TreePay) expand() (clause.Clause, *template.Template, error) {
	if s.Radix < 2 {
		return nil, nil, errors.WithDetailf(contract.ErrFieldType, "radix %d is below 2", s.Radix)
	}
	b := template.NewBuilder()
	n := len(s.Participants)
	if n <= s.Radix {
		for _, p := range s.Participants {
			b.AddOutput(p.Amount, p.Contract)
		}
		tmpl, err := b.Build()
		return nil, tmpl, err
	}

	size := n / s.Radix
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		chunk := s.Participants[i:end]
		amounts := make([]amount.Amount, 0, len(chunk))
		for _, p := range chunk {
			amounts = append(amounts, p.Amount)
		}
		total, ok := amount.Sum(amounts...)
		if !ok {
			return nil, nil, errors.WithDetailf(contract.ErrAmountInvariant,
				"participants %d..%d total more than %d sats", i, end-1, amount.MaxMoney)
		}
		sub, err := contract.New(TreePay{Participants: chunk, Radix: s.Radix, Options: s.Options}, s.Options...)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "participants %d..%d", i, end-1)
		}
		b.AddOutput(total, sub)
	}
	tmpl, err := b.Build()
	return nil, tmpl, err
}
