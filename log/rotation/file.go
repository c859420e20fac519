// Package rotation is a log writer that caps the size of its file
// and keeps a fixed number of older files beside it: name.1 is the
// most recent, name.N the oldest.
package rotation

import (
	"bytes"
	"os"
	"strconv"

	"github.com/jamesob/sapio/errors"
)

// File writes whole lines to a size-capped log file. It is not
// safe for concurrent use; package log serializes its writes.
//
// Errors while renaming old files are ignored. Errors opening or
// writing the current file are returned, and the lines involved
// are replaced by a notice that data was dropped.
type File struct {
	name    string
	maxSize int64
	keep    int

	pending []byte
	f       *os.File
	written int64
}

// Create returns a File appending to name. Once name would exceed
// maxSize bytes it becomes name.1 and a fresh file is started;
// at most keep old files are retained (at least one).
func Create(name string, maxSize, keep int) *File {
	if keep < 1 {
		keep = 1
	}
	return &File{name: name, maxSize: int64(maxSize), keep: keep}
}

var dropped = []byte("\nlog write failed; lines dropped\n")

// Write buffers p and writes out every complete line in it.
func (f *File) Write(p []byte) (int, error) {
	f.pending = append(f.pending, p...)
	i := bytes.LastIndexByte(f.pending, '\n')
	if i < 0 {
		return len(p), nil
	}
	err := f.writeLines(f.pending[:i+1])
	rest := f.pending[i+1:]
	if err != nil {
		rest = append(append([]byte(nil), dropped...), rest...)
	}
	f.pending = append(f.pending[:0], rest...)
	return len(p), err
}

func (f *File) writeLines(b []byte) error {
	if f.f == nil {
		if err := f.open(); err != nil {
			return err
		}
	}
	if f.written > 0 && f.written+int64(len(b)) > f.maxSize {
		f.f.Close()
		f.f = nil
		f.shift()
		if err := f.open(); err != nil {
			return err
		}
	}
	n, err := f.f.Write(b)
	f.written += int64(n)
	return errors.Wrap(err, "write log")
}

func (f *File) open() error {
	file, err := os.OpenFile(f.name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "open log")
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return errors.Wrap(err, "stat log")
	}
	f.f, f.written = file, st.Size()
	return nil
}

func (f *File) shift() {
	for i := f.keep - 1; i > 0; i-- {
		os.Rename(f.old(i), f.old(i+1))
	}
	os.Rename(f.name, f.old(1))
}

func (f *File) old(i int) string {
	return f.name + "." + strconv.Itoa(i)
}

// Close closes the current file. Buffered partial lines are
// discarded.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}
