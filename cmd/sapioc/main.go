package main

import (
	"bytes"
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sync/errgroup"

	"github.com/jamesob/sapio/amount"
	"github.com/jamesob/sapio/contract"
	"github.com/jamesob/sapio/emulator"
	"github.com/jamesob/sapio/env"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/log"
	"github.com/jamesob/sapio/zoo"
)

// config vars
var (
	network      = env.Network("SAPIO_NETWORK", "mainnet")
	dustLimit    = env.Amount("SAPIO_DUST_LIMIT", amount.DefaultDust)
	emulatorXPub = env.String("SAPIO_EMULATOR_XPUB", "")
	emulatorAddr = env.String("SAPIO_EMULATOR_ADDR", "localhost:8367")
	showMetrics  = env.Bool("SAPIO_METRICS", false)
	debug        = env.Bool("SAPIO_DEBUG", false)
)

// We collect log output in this buffer,
// and display it only when there's an error.
var logbuf bytes.Buffer

type command struct {
	f func(context.Context, []string)
}

var commands = map[string]*command{
	"list":   {list},
	"create": {create},
	"bind":   {bind},
	"sign":   {sign},
}

func main() {
	log.SetOutput(&logbuf)
	log.SetPrefix("app", "sapioc")
	env.Parse()

	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(0)
	}
	cmd := commands[os.Args[1]]
	if cmd == nil {
		fmt.Fprintln(os.Stderr, "unknown command:", os.Args[1])
		help(os.Stderr)
		os.Exit(1)
	}
	ctx := log.AddPrefixkv(context.Background(), "cmd", os.Args[1], "net", (*network).Name)
	cmd.f(ctx, os.Args[2:])
	dumpMetrics(os.Stderr)
}

func list(ctx context.Context, args []string) {
	if len(args) != 0 {
		fatalln("error: list takes no args")
	}
	for _, name := range zoo.Names() {
		fmt.Println(name)
	}
}

func create(ctx context.Context, args []string) {
	if len(args) == 0 {
		fatalln("usage: sapioc create file.json...")
	}
	opts := options()

	contracts := make([]*contract.Contract, len(args))
	var g errgroup.Group
	for i, name := range args {
		i, name := i, name
		g.Go(func() error {
			c, err := load(ctx, name, opts)
			contracts[i] = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		fatalln("error:", err)
	}

	for i, c := range contracts {
		if i > 0 {
			fmt.Println()
		}
		describe(os.Stdout, c)
	}
}

func describe(w io.Writer, c *contract.Contract) {
	fmt.Fprintln(w, "contract", c.Name())
	if addr, err := c.Address(*network); err == nil {
		fmt.Fprintln(w, "address ", addr.EncodeAddress())
	}
	fmt.Fprintln(w, "range   ", c.AmountRange())
	if m := c.Witness(); m != nil {
		fmt.Fprintln(w, "script  ", m.Disasm())
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		fatalln("error:", err)
	}
	fmt.Fprintf(w, "%s\n", b)
}

func bind(ctx context.Context, args []string) {
	b := bindArgs(ctx, "bind", args)
	packets, err := b.PSBTs()
	if err != nil {
		fatalln("error:", err)
	}
	printBound(b, packets)
}

func sign(ctx context.Context, args []string) {
	b := bindArgs(ctx, "sign", args)
	packets, err := b.PSBTs()
	if err != nil {
		fatalln("error:", err)
	}
	oracle := mustOracle()
	if oracle == nil {
		fatalln("error: sign requires SAPIO_EMULATOR_XPUB")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := emulator.Dial(ctx, *emulatorAddr, oracle)
	if err != nil {
		fatalln("error:", err)
	}
	defer client.Close()
	for i, p := range packets {
		if err := client.Sign(ctx, p); err != nil {
			fatalln("error:", errors.Wrapf(err, "transaction %d", i))
		}
		log.Printkv(ctx, "at", "signed", "tx", i, "sigs", len(p.Inputs[0].PartialSigs))
	}
	printBound(b, packets)
}

func printBound(b *contract.Bound, packets []*psbt.Packet) {
	fmt.Print(b)
	if *debug {
		for _, tx := range b.Transactions() {
			spew.Fdump(os.Stderr, tx)
		}
	}
	for _, p := range packets {
		s, err := p.B64Encode()
		if err != nil {
			fatalln("error:", err)
		}
		fmt.Println(s)
	}
}

func bindArgs(ctx context.Context, cmd string, args []string) *contract.Bound {
	if len(args) != 3 {
		fatalln("usage: sapioc", cmd, "file.json txid:index amount")
	}
	c, err := load(ctx, args[0], options())
	if err != nil {
		fatalln("error:", err)
	}
	op, err := parseOutpoint(args[1])
	if err != nil {
		fatalln("error:", err)
	}
	amt, err := amount.Parse(args[2])
	if err != nil {
		fatalln("error:", err)
	}
	b, err := c.Bind(contract.FundingRef{Outpoint: op, Amount: amt})
	if err != nil {
		fatalln("error:", err)
	}
	log.Printkv(ctx, "at", "bound", "contract", c.Name(), "path", b.Path, "txs", len(b.Transactions()))
	return b
}

func load(ctx context.Context, name string, opts []contract.Option) (*contract.Contract, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, errors.Wrap(err)
		}
		defer f.Close()
		r = f
	}
	d, err := zoo.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	c, err := zoo.Create(d, *network, opts...)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	log.Printkv(ctx, "at", "created", "file", name, "contract", c.Name(), "range", c.AmountRange())
	return c, nil
}

func options() []contract.Option {
	opts := []contract.Option{contract.WithDustLimit(*dustLimit)}
	if o := mustOracle(); o != nil {
		opts = append(opts, contract.WithEmulator(o))
	}
	return opts
}

func mustOracle() *emulator.HDOracle {
	if *emulatorXPub == "" {
		return nil
	}
	o, err := emulator.ParseHDOracle(*emulatorXPub)
	if err != nil {
		fatalln("error: SAPIO_EMULATOR_XPUB:", err)
	}
	return o
}

func parseOutpoint(s string) (wire.OutPoint, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return wire.OutPoint{}, errors.New("outpoint must be txid:index")
	}
	h, err := chainhash.NewHashFromStr(s[:i])
	if err != nil {
		return wire.OutPoint{}, errors.Wrapf(err, "txid %q", s[:i])
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return wire.OutPoint{}, errors.Wrapf(err, "index %q", s[i+1:])
	}
	return wire.OutPoint{Hash: *h, Index: uint32(n)}, nil
}

func dumpMetrics(w io.Writer) {
	if !*showMetrics {
		return
	}
	for _, name := range []string{"latency", "counts"} {
		if v := expvar.Get(name); v != nil {
			fmt.Fprintf(w, "%s %s\n", name, v)
		}
	}
}

func fatalln(v ...interface{}) {
	io.Copy(os.Stderr, &logbuf)
	fmt.Fprintln(os.Stderr, v...)
	os.Exit(2)
}

func help(w io.Writer) {
	fmt.Fprintln(w, "usage: sapioc [command] [arguments]")
	fmt.Fprint(w, "\nThe commands are:\n\n")
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, "\t", name)
	}
	fmt.Fprintln(w)
}
