/*

Command sapioc compiles contracts described in JSON and binds them
to funding outputs.

    sapioc list

List prints the contract types that descriptions may name.

    sapioc create file.json...

Create compiles each description (use - for stdin) and prints the
contract's address, accepted amounts, witness script, and full JSON
form. Files are compiled concurrently.

    sapioc bind file.json txid:index amount

Bind instantiates the contract at the given funding output and
prints the transaction tree followed by one base64 PSBT per
transaction.

    sapioc sign file.json txid:index amount

Sign is like bind, but first sends every PSBT to the CTV emulator
oracle at SAPIO_EMULATOR_ADDR for its signature.

Configuration is read from the environment:

    SAPIO_NETWORK        mainnet, testnet3, regtest, signet, or simnet (default mainnet)
    SAPIO_DUST_LIMIT     smallest amount unlock paths accept (default 330 sats)
    SAPIO_EMULATOR_XPUB  oracle extended public key; enables CTV emulation
    SAPIO_EMULATOR_ADDR  oracle host:port, for sign
    SAPIO_METRICS        print latency histograms and counters on exit
    SAPIO_DEBUG          dump bound transactions in full

*/
package main
