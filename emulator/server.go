package emulator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"golang.org/x/sync/errgroup"

	"github.com/jamesob/sapio/encoding/bufpool"
	"github.com/jamesob/sapio/errors"
	"github.com/jamesob/sapio/log"
)

// MaxMessage bounds a framed packet on the oracle connection.
const MaxMessage = 1000000

// ErrFrame is returned for oversized or truncated messages.
var ErrFrame = errors.New("bad oracle message")

// Messages on an oracle connection are a 4-byte big-endian length
// followed by a serialized PSBT. The client sends a packet; the
// server answers with the same packet carrying its signature, or
// unchanged if it would not sign.

func writeFrame(w io.Writer, p *psbt.Packet) error {
	buf := bufpool.Get()
	defer bufpool.Put(buf)
	if err := p.Serialize(buf); err != nil {
		return errors.Wrap(err, "serialize packet")
	}
	if buf.Len() > MaxMessage {
		return errors.WithDetailf(ErrFrame, "%d bytes", buf.Len())
	}
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(buf.Len()))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readFrame(r io.Reader) (*psbt.Packet, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(n[:])
	if size > MaxMessage {
		return nil, errors.WithDetailf(ErrFrame, "%d bytes", size)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Sub(ErrFrame, err)
	}
	p, err := psbt.NewFromRawBytes(bytes.NewReader(b), false)
	if err != nil {
		return nil, errors.Sub(ErrFrame, err)
	}
	return p, nil
}

// Server answers signing requests from Clients.
type Server struct {
	Signer *Signer
}

// Serve accepts connections on ln until ctx is done, then closes
// ln and waits for open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	var conns connSet
	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		conns.closeAll()
		return nil
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				g.Wait()
				return ctx.Err()
			}
			cancel()
			g.Wait()
			return errors.Wrap(err, "accept")
		}
		if !conns.add(ctx, conn) {
			continue
		}
		g.Go(func() error {
			defer conns.remove(conn)
			s.serveConn(log.AddPrefixkv(ctx, "remote", conn.RemoteAddr()), conn)
			return nil
		})
	}
}

// connSet tracks open connections so Serve can close them on
// shutdown.
type connSet struct {
	mu     sync.Mutex
	m      map[net.Conn]bool
	closed bool
}

// add registers c unless ctx is done or the set has been closed,
// in which case it closes c and returns false.
func (cs *connSet) add(ctx context.Context, c net.Conn) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed || ctx.Err() != nil {
		c.Close()
		return false
	}
	if cs.m == nil {
		cs.m = make(map[net.Conn]bool)
	}
	cs.m[c] = true
	return true
}

func (cs *connSet) remove(c net.Conn) {
	cs.mu.Lock()
	delete(cs.m, c)
	cs.mu.Unlock()
	c.Close()
}

func (cs *connSet) closeAll() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.closed = true
	for c := range cs.m {
		c.Close()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer log.RecoverAndLogError(ctx)
	r := bufio.NewReader(conn)
	for {
		p, err := readFrame(r)
		if err == io.EOF || ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error(ctx, err, "read request")
			return
		}
		if err := s.Signer.Sign(p); err != nil {
			log.Error(ctx, err, "sign")
		}
		if err := writeFrame(conn, p); err != nil {
			log.Error(ctx, err, "write response")
			return
		}
	}
}

// Client derives commitment keys locally and asks a remote oracle
// for signatures. It is safe for concurrent use; requests share one
// connection and are serialized.
type Client struct {
	*HDOracle

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to the oracle at addr whose extended public key is
// oracle.
func Dial(ctx context.Context, addr string, oracle *HDOracle) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial oracle %s", addr)
	}
	return &Client{HDOracle: oracle, conn: conn, r: bufio.NewReader(conn)}, nil
}

// Sign sends p to the oracle and merges the returned signatures
// for input 0 into p.
func (c *Client) Sign(ctx context.Context, p *psbt.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
		defer c.conn.SetDeadline(time.Time{})
	}
	if err := writeFrame(c.conn, p); err != nil {
		return errors.Wrap(err, "send to oracle")
	}
	resp, err := readFrame(c.r)
	if err != nil {
		return errors.Wrap(err, "read from oracle")
	}
	if len(resp.Inputs) == 0 || len(p.Inputs) == 0 {
		return errors.WithDetail(ErrPacket, "no inputs in oracle response")
	}
	p.Inputs[0].PartialSigs = mergeSigs(p.Inputs[0].PartialSigs, resp.Inputs[0].PartialSigs)
	return nil
}

// Close closes the oracle connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
