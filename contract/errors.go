package contract

import "github.com/jamesob/sapio/errors"

// Errors returned by New, FromAddress, and Bind. Compare them with
// errors.Root.
var (
	// ErrFieldType means a field value has the wrong type or shape.
	ErrFieldType = errors.New("field type error")

	// ErrSchema means the contract's paths are malformed: none at
	// all, duplicate or empty names, nil functions or clauses, or
	// a guarantee without a usable template.
	ErrSchema = errors.New("schema error")

	// ErrAmountInvariant means some amount would be lost or created:
	// an output outside its destination's range, an allocation
	// outside its contract's range, or a total over MaxMoney.
	ErrAmountInvariant = errors.New("amount invariant violation")

	// ErrBind means no path of the contract accepts the funded amount.
	ErrBind = errors.New("bind error")
)
