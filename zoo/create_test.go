package zoo

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/contract"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/testutil"
)

func TestNames(t *testing.T) {
	want := []string{"BasicEscrow", "BasicEscrow2", "PayToPublicKey", "TreePay", "TrustlessEscrow", "address"}
	if got := Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v want %v", got, want)
	}
}

func TestCreateTrustlessEscrow(t *testing.T) {
	addr := testAddress(t, 7)
	src := fmt.Sprintf(`{"type": "TrustlessEscrow", "args": {
		"alice": %q, "bob": %q,
		"alice_escrow": {"amount": "1 BTC", "contract": {"type": "PayToPublicKey", "args": {"key": %q}}},
		"bob_escrow": {"amount": 10000, "contract": {"type": "address", "args": {"address": %q}}}
	}}`, pk(0), pk(1), pk(0), addr.EncodeAddress())

	d, err := Decode(strings.NewReader(src))
	if err != nil {
		testutil.FatalErr(t, err)
	}
	c, err := Create(d, &chaincfg.MainNetParams)
	if err != nil {
		testutil.FatalErr(t, err)
	}

	want := mustNew(t, TrustlessEscrow{
		Alice:       pk(0),
		Bob:         pk(1),
		AliceEscrow: contract.Allocation{Amount: amount.Bitcoins(1), Contract: mustNew(t, PayToPublicKey{Key: pk(0)})},
		BobEscrow:   contract.Allocation{Amount: 10000, Contract: mustAddressContract(t, addr.EncodeAddress())},
	})
	testutil.ExpectScriptEqual(t, c.PkScript(), want.PkScript(), "created contract")
	if !c.AmountRange().Equal(want.AmountRange()) {
		t.Errorf("AmountRange = %s want %s", c.AmountRange(), want.AmountRange())
	}
}

func mustAddressContract(t testing.TB, s string) *contract.Contract {
	c, err := Create(Description{Type: "address", Args: json.RawMessage(fmt.Sprintf(`{"address": %q}`, s))}, &chaincfg.MainNetParams)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	return c
}

func TestCreateTreePay(t *testing.T) {
	args := fmt.Sprintf(`{"radix": 2, "participants": [
		{"amount": 10000, "address": %q},
		{"amount": "0.0002 BTC", "address": %q},
		{"amount": "30000 sats", "address": %q}
	]}`, testAddress(t, 1).EncodeAddress(), testAddress(t, 2).EncodeAddress(), testAddress(t, 3).EncodeAddress())
	c, err := Create(Description{Type: "TreePay", Args: json.RawMessage(args)}, &chaincfg.MainNetParams)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	if !c.AmountRange().Equal(amount.Exactly(60000)) {
		t.Errorf("AmountRange = %s want [60000, 60000]", c.AmountRange())
	}
}

func TestCreateErrors(t *testing.T) {
	mainnet := testAddress(t, 1).EncodeAddress()
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"unknown type", `{"type": "Nope", "args": {}}`, ErrUnknownType},
		{"missing args", `{"type": "PayToPublicKey"}`, contract.ErrFieldType},
		{"bad key", `{"type": "PayToPublicKey", "args": {"key": "02ff"}}`, contract.ErrFieldType},
		{"unknown argument", fmt.Sprintf(`{"type": "PayToPublicKey", "args": {"key": %q, "extra": 1}}`, pk(0)), contract.ErrFieldType},
		{"missing key", `{"type": "BasicEscrow", "args": {}}`, contract.ErrFieldType},
		{"bad amount", fmt.Sprintf(`{"type": "TreePay", "args": {"radix": 2, "participants": [{"amount": "1.5 sats", "address": %q}]}}`, mainnet), contract.ErrFieldType},
		{"wrong network", fmt.Sprintf(`{"type": "address", "args": {"address": %q}}`, testnetAddress(t)), contract.ErrFieldType},
		{"underfunded", fmt.Sprintf(`{"type": "TrustlessEscrow", "args": {
			"alice": %q, "bob": %q,
			"alice_escrow": {"amount": 100, "contract": {"type": "PayToPublicKey", "args": {"key": %q}}},
			"bob_escrow": {"amount": 1000, "contract": {"type": "PayToPublicKey", "args": {"key": %q}}}}}`,
			pk(0), pk(1), pk(0), pk(1)), contract.ErrAmountInvariant},
	}
	for _, tc := range cases {
		testutil.ExpectError(t, tc.want, tc.name, func() error {
			d, err := Decode(strings.NewReader(tc.src))
			if err != nil {
				return err
			}
			_, err = Create(d, &chaincfg.MainNetParams)
			return err
		})
	}

	_, err := Decode(strings.NewReader(`{"type": "PayToPublicKey", "bogus": 1}`))
	if errors.Root(err) != contract.ErrFieldType {
		t.Errorf("Decode with unknown key: error = %v want %v", err, contract.ErrFieldType)
	}
}

func testnetAddress(t testing.TB) string {
	c := mustNew(t, PayToPublicKey{Key: pk(0)})
	a, err := c.Address(&chaincfg.TestNet3Params)
	if err != nil {
		testutil.FatalErr(t, err)
	}
	return a.EncodeAddress()
}
