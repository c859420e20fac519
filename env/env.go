// Package env provides a convenient way to convert environment
// variables into Go data. It is similar in design to package
// flag.
package env

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/log"
)

// ErrBadValue is logged for each variable Parse cannot interpret.
var ErrBadValue = errors.New("bad environment value")

var funcs []func() error

func register(name string, set func(s string) error) {
	funcs = append(funcs, func() error {
		s := os.Getenv(name)
		if s == "" {
			return nil
		}
		return errors.WithDetailf(errors.Sub(ErrBadValue, set(s)), "%s=%q", name, s)
	})
}

// Int returns a new int pointer.
// When Parse is called,
// env var name will be parsed
// and the resulting value
// will be assigned to the returned location.
func Int(name string, value int) *int {
	p := new(int)
	IntVar(p, name, value)
	return p
}

// IntVar defines an int var with the specified
// name and default value.
func IntVar(p *int, name string, value int) {
	*p = value
	register(name, func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	})
}

// Bool returns a new bool pointer.
// Parsing uses strconv.ParseBool.
func Bool(name string, value bool) *bool {
	p := new(bool)
	BoolVar(p, name, value)
	return p
}

// BoolVar defines a bool var with the specified
// name and default value.
func BoolVar(p *bool, name string, value bool) {
	*p = value
	register(name, func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	})
}

// String returns a new string pointer.
func String(name string, value string) *string {
	p := new(string)
	StringVar(p, name, value)
	return p
}

// StringVar defines a string with the
// specified name and default value.
func StringVar(p *string, name string, value string) {
	*p = value
	register(name, func(s string) error {
		*p = s
		return nil
	})
}

// StringSlice returns a pointer to a slice
// of strings. It expects env var name to
// be a list of items delimited by commas.
func StringSlice(name string, value ...string) *[]string {
	p := new([]string)
	*p = value
	register(name, func(s string) error {
		*p = strings.Split(s, ",")
		return nil
	})
	return p
}

// Amount returns a pointer to an amount read with amount.Parse,
// so both "0.001 BTC" and "100000 sats" are accepted.
func Amount(name string, value amount.Amount) *amount.Amount {
	p := new(amount.Amount)
	*p = value
	register(name, func(s string) error {
		v, err := amount.Parse(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	})
	return p
}

var networks = map[string]*chaincfg.Params{
	"mainnet":  &chaincfg.MainNetParams,
	"testnet":  &chaincfg.TestNet3Params,
	"testnet3": &chaincfg.TestNet3Params,
	"regtest":  &chaincfg.RegressionNetParams,
	"signet":   &chaincfg.SigNetParams,
	"simnet":   &chaincfg.SimNetParams,
}

// Network returns a pointer to the chain parameters named by env
// var name (mainnet, testnet3, regtest, signet, or simnet).
// The default name must be one of these.
func Network(name string, value string) **chaincfg.Params {
	p := new(*chaincfg.Params)
	def, ok := networks[value]
	if !ok {
		panic("env: unknown default network " + value)
	}
	*p = def
	register(name, func(s string) error {
		params, ok := networks[strings.ToLower(s)]
		if !ok {
			return errors.New("unknown network")
		}
		*p = params
		return nil
	})
	return p
}

// Parse parses known env vars
// and assigns the values to the variables
// that were previously registered.
// If any values cannot be parsed,
// Parse logs an error for each one
// and exits the process with status 1.
func Parse() {
	if err := parse(); err != nil {
		os.Exit(1)
	}
}

func parse() error {
	var first error
	for _, f := range funcs {
		if err := f(); err != nil {
			log.Error(context.Background(), err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
