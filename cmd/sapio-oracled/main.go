// Command sapio-oracled runs a CTV emulator oracle: it signs
// continuation transactions with keys derived from their template
// hashes, so contracts compiled with SAPIO_EMULATOR_XPUB can be
// spent on networks without OP_CHECKTEMPLATEVERIFY.
//
// The oracle's extended private key is read from SAPIO_ORACLE_XPRV.
// Logs go to stdout, or to LOGFILE rotated every LOGSIZE bytes with
// LOGCOUNT old files kept. If DEBUG_LISTEN is set, expvar metrics
// are served there at /debug/vars.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/jamesob/sapio/emulator"
	"github.com/jamesob/sapio/env"
	"github.com/jamesob/sapio/log"
	"github.com/jamesob/sapio/log/rotation"
)

var (
	listenAddr = env.String("LISTEN", ":8367")
	debugAddr  = env.String("DEBUG_LISTEN", "")
	xprv       = env.String("SAPIO_ORACLE_XPRV", "")
	logFile    = env.String("LOGFILE", "")
	logSize    = env.Int("LOGSIZE", 5e6) // 5MB
	logCount   = env.Int("LOGCOUNT", 9)
)

func main() {
	env.Parse()
	log.SetPrefix("app", "sapio-oracled")
	if *logFile != "" {
		f := rotation.Create(*logFile, *logSize, *logCount)
		defer f.Close()
		log.SetOutput(f)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	if *xprv == "" {
		log.Fatalkv(ctx, "error", "SAPIO_ORACLE_XPRV is not set")
	}
	root, err := hdkeychain.NewKeyFromString(*xprv)
	if err != nil {
		log.Fatalkv(ctx, "error", err)
	}
	signer, err := emulator.NewSigner(root)
	if err != nil {
		log.Fatalkv(ctx, "error", err)
	}

	if *debugAddr != "" {
		go func() {
			err := http.ListenAndServe(*debugAddr, nil)
			log.Error(ctx, err, "debug listener")
		}()
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalkv(ctx, "error", err)
	}
	log.Printkv(ctx, "at", "serve", "addr", ln.Addr(), "xpub", signer.Oracle())
	srv := &emulator.Server{Signer: signer}
	if err := srv.Serve(ctx, ln); err != nil && err != context.Canceled {
		log.Fatalkv(ctx, "error", err)
	}
	log.Printkv(ctx, "at", "shutdown")
}
