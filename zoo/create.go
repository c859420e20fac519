package zoo

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/clause"
	"github.com/jamesob/sapio/contract"
	"github.com/jamesob/sapio/errors"
)

// ErrUnknownType is returned by Create for an unregistered
// contract type.
var ErrUnknownType = errors.New("unknown contract type")

// Description names a contract type and carries its JSON arguments.
// Allocations inside the arguments nest further descriptions:
//
//	{"type": "TrustlessEscrow", "args": {
//	    "alice": "02…", "bob": "03…",
//	    "alice_escrow": {"amount": "1 BTC", "contract": {"type": "PayToPublicKey", "args": {"key": "02…"}}},
//	    "bob_escrow":   {"amount": 10000,   "contract": {"type": "address", "args": {"address": "bc1q…"}}}}}
type Description struct {
	Type string          `json:"type"`
	Args json.RawMessage `json:"args"`
}

// Decode reads one Description from r.
func Decode(r io.Reader) (Description, error) {
	var d Description
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return d, errors.Sub(contract.ErrFieldType, errors.Wrap(err, "decoding description"))
	}
	return d, nil
}

type constructor func(args json.RawMessage, net *chaincfg.Params, opts []contract.Option) (*contract.Contract, error)

var registry map[string]constructor

func init() {
	registry = map[string]constructor{
		"address":         createAddress,
		"PayToPublicKey":  createPayToPublicKey,
		"BasicEscrow":     createBasicEscrow,
		"BasicEscrow2":    createBasicEscrow2,
		"TrustlessEscrow": createTrustlessEscrow,
		"TreePay":         createTreePay,
	}
}

// Names lists the contract types Create knows, sorted.
func Names() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create constructs the contract d describes. Addresses are decoded
// for net. Malformed arguments fail with contract.ErrFieldType;
// construction errors are those of contract.New.
func Create(d Description, net *chaincfg.Params, opts ...contract.Option) (*contract.Contract, error) {
	f, ok := registry[d.Type]
	if !ok {
		return nil, errors.WithDetailf(ErrUnknownType, "%q", d.Type)
	}
	c, err := f(d.Args, net, opts)
	return c, errors.Wrap(err, d.Type)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Sub(contract.ErrFieldType, err)
	}
	return nil
}

func decodeAddress(s string, net *chaincfg.Params) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(s, net)
	if err != nil {
		return nil, errors.Sub(contract.ErrFieldType, errors.Wrapf(err, "address %q", s))
	}
	if !addr.IsForNet(net) {
		return nil, errors.WithDetailf(contract.ErrFieldType, "address %s is not for %s", s, net.Name)
	}
	return addr, nil
}

type allocationArgs struct {
	Amount   amount.Amount `json:"amount"`
	Contract Description   `json:"contract"`
}

func (a allocationArgs) create(net *chaincfg.Params, opts []contract.Option) (contract.Allocation, error) {
	c, err := Create(a.Contract, net, opts...)
	if err != nil {
		return contract.Allocation{}, err
	}
	return contract.Allocation{Amount: a.Amount, Contract: c}, nil
}

func createAddress(args json.RawMessage, net *chaincfg.Params, opts []contract.Option) (*contract.Contract, error) {
	var a struct {
		Address string `json:"address"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	addr, err := decodeAddress(a.Address, net)
	if err != nil {
		return nil, err
	}
	return contract.FromAddress(addr, opts...)
}

func createPayToPublicKey(args json.RawMessage, net *chaincfg.Params, opts []contract.Option) (*contract.Contract, error) {
	var a struct {
		Key clause.PubKey `json:"key"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return contract.New(PayToPublicKey{Key: a.Key}, opts...)
}

type escrowArgs struct {
	Alice  clause.PubKey `json:"alice"`
	Bob    clause.PubKey `json:"bob"`
	Escrow clause.PubKey `json:"escrow"`
}

func createBasicEscrow(args json.RawMessage, net *chaincfg.Params, opts []contract.Option) (*contract.Contract, error) {
	var a escrowArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return contract.New(BasicEscrow(a), opts...)
}

func createBasicEscrow2(args json.RawMessage, net *chaincfg.Params, opts []contract.Option) (*contract.Contract, error) {
	var a escrowArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return contract.New(BasicEscrow2(a), opts...)
}

func createTrustlessEscrow(args json.RawMessage, net *chaincfg.Params, opts []contract.Option) (*contract.Contract, error) {
	var a struct {
		Alice       clause.PubKey  `json:"alice"`
		Bob         clause.PubKey  `json:"bob"`
		AliceEscrow allocationArgs `json:"alice_escrow"`
		BobEscrow   allocationArgs `json:"bob_escrow"`
		Timeout     uint32         `json:"timeout"`
		Fee         amount.Amount  `json:"fee"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	aliceEscrow, err := a.AliceEscrow.create(net, opts)
	if err != nil {
		return nil, errors.Wrap(err, "alice_escrow")
	}
	bobEscrow, err := a.BobEscrow.create(net, opts)
	if err != nil {
		return nil, errors.Wrap(err, "bob_escrow")
	}
	return contract.New(TrustlessEscrow{
		Alice:       a.Alice,
		Bob:         a.Bob,
		AliceEscrow: aliceEscrow,
		BobEscrow:   bobEscrow,
		Timeout:     a.Timeout,
		Fee:         a.Fee,
	}, opts...)
}

func createTreePay(args json.RawMessage, net *chaincfg.Params, opts []contract.Option) (*contract.Contract, error) {
	var a struct {
		Participants []struct {
			Amount  amount.Amount `json:"amount"`
			Address string        `json:"address"`
		} `json:"participants"`
		Radix int `json:"radix"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	payments := make([]Payment, 0, len(a.Participants))
	for i, p := range a.Participants {
		addr, err := decodeAddress(p.Address, net)
		if err != nil {
			return nil, errors.Wrapf(err, "participant %d", i)
		}
		payments = append(payments, Payment{Amount: p.Amount, Address: addr})
	}
	return NewTreePay(payments, a.Radix, opts...)
}
