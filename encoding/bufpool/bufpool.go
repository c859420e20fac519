// Package bufpool recycles bytes.Buffers used to serialize
// transactions and packets.
package bufpool

import (
	"bytes"
	"sync"
)

var pool = sync.Pool{New: func() interface{} { return new(bytes.Buffer) }}

// Get returns an empty buffer. Return it with Put once nothing
// refers to its contents.
func Get() *bytes.Buffer {
	return pool.Get().(*bytes.Buffer)
}

// Put empties b and makes it available to Get.
func Put(b *bytes.Buffer) {
	b.Reset()
	pool.Put(b)
}

// CopyBytes returns a copy of b's contents that outlives Put.
func CopyBytes(b *bytes.Buffer) []byte {
	return append([]byte(nil), b.Bytes()...)
}
