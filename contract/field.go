package contract

import (
	"fmt"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/errors"
)

// FieldType is the declared type of a contract field.
type FieldType int

// Field types and the Go type each one's Value must have.
const (
	FieldPubKey         FieldType = iota // clause.PubKey
	FieldAmount                          // amount.Amount
	FieldAllocation                      // Allocation
	FieldAllocationList                  // []Allocation, non-empty
	FieldInt                             // int64
	FieldBytes                           // []byte
)

var fieldTypeNames = [...]string{
	FieldPubKey:         "pubkey",
	FieldAmount:         "amount",
	FieldAllocation:     "allocation",
	FieldAllocationList: "allocation_list",
	FieldInt:            "int",
	FieldBytes:          "bytes",
}

func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
	return fieldTypeNames[t]
}

// MarshalText encodes t by name.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Field is one named, typed value of a contract.
type Field struct {
	Name  string      `json:"name"`
	Type  FieldType   `json:"type"`
	Value interface{} `json:"value"`
}

// Allocation assigns an amount to a nested contract. The amount
// must lie in the contract's amount range.
type Allocation struct {
	Amount   amount.Amount `json:"amount"`
	Contract *Contract     `json:"contract"`
}

func PubKeyField(name string, k clause.PubKey) Field {
	return Field{Name: name, Type: FieldPubKey, Value: k}
}

func AmountField(name string, a amount.Amount) Field {
	return Field{Name: name, Type: FieldAmount, Value: a}
}

func AllocationField(name string, a Allocation) Field {
	return Field{Name: name, Type: FieldAllocation, Value: a}
}

func AllocationListField(name string, as []Allocation) Field {
	return Field{Name: name, Type: FieldAllocationList, Value: append([]Allocation(nil), as...)}
}

func IntField(name string, n int64) Field {
	return Field{Name: name, Type: FieldInt, Value: n}
}

func BytesField(name string, b []byte) Field {
	return Field{Name: name, Type: FieldBytes, Value: append([]byte(nil), b...)}
}

// checkFields validates names and value types, then the amounts
// of nested allocations. It returns copies of the fields.
func checkFields(fields []Field) ([]Field, error) {
	out := make([]Field, len(fields))
	seen := make(map[string]bool)
	for i, f := range fields {
		if f.Name == "" {
			return nil, errors.WithDetailf(ErrFieldType, "field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, errors.WithDetailf(ErrFieldType, "duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		v, err := checkValue(f.Type, f.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		out[i] = Field{Name: f.Name, Type: f.Type, Value: v}
	}

	for _, f := range out {
		var allocs []Allocation
		switch v := f.Value.(type) {
		case Allocation:
			allocs = []Allocation{v}
		case []Allocation:
			allocs = v
		}
		for i, a := range allocs {
			if r := a.Contract.AmountRange(); !r.Contains(a.Amount) {
				return nil, errors.WithDetailf(ErrAmountInvariant,
					"field %q allocation %d: %s assigned to %s, which accepts %s",
					f.Name, i, a.Amount, a.Contract.Name(), r)
			}
		}
	}
	return out, nil
}

func checkValue(t FieldType, v interface{}) (interface{}, error) {
	bad := func(format string, args ...interface{}) error {
		return errors.WithDetailf(ErrFieldType, format, args...)
	}
	switch t {
	case FieldPubKey:
		if k, ok := v.(clause.PubKey); ok {
			if _, err := k.BTCEC(); err != nil {
				return nil, errors.Sub(ErrFieldType, err)
			}
			return k, nil
		}
	case FieldAmount:
		if a, ok := v.(amount.Amount); ok {
			if !a.Valid() {
				return nil, bad("amount %d out of range", a)
			}
			return a, nil
		}
	case FieldAllocation:
		if a, ok := v.(Allocation); ok {
			return a, checkAllocation(a)
		}
	case FieldAllocationList:
		if as, ok := v.([]Allocation); ok {
			if len(as) == 0 {
				return nil, bad("empty allocation list")
			}
			for i, a := range as {
				if err := checkAllocation(a); err != nil {
					return nil, errors.Wrapf(err, "allocation %d", i)
				}
			}
			return append([]Allocation(nil), as...), nil
		}
	case FieldInt:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case FieldBytes:
		if b, ok := v.([]byte); ok {
			return append([]byte(nil), b...), nil
		}
	default:
		return nil, bad("unknown field type %d", int(t))
	}
	return nil, bad("%s field holds %T", t, v)
}

func checkAllocation(a Allocation) error {
	if a.Contract == nil {
		return errors.WithDetail(ErrFieldType, "allocation to nil contract")
	}
	if !a.Amount.Valid() {
		return errors.WithDetailf(ErrFieldType, "allocation amount %d out of range", a.Amount)
	}
	return nil
}
