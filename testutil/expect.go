// Package testutil holds assertions and fixtures shared by the
// package tests in this module.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/davecgh/go-spew/spew"

	"github.com/jamesob/sapio/errors"
)

var wd, _ = os.Getwd()

func ExpectEqual(t testing.TB, actual, expected interface{}, msg string) {
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("%s: got %s, expected %s\n%s", msg, spew.Sdump(actual), spew.Sdump(expected), stackTrace())
	}
}

// ExpectScriptEqual compares two scripts and reports a mismatch in
// disassembled form.
func ExpectScriptEqual(t testing.TB, actual, expected []byte, msg string) {
	if !bytes.Equal(expected, actual) {
		expectedStr, _ := txscript.DisasmString(expected)
		actualStr, _ := txscript.DisasmString(actual)
		t.Errorf("%s: got [%s], expected [%s]\n%s", msg, actualStr, expectedStr, stackTrace())
	}
}

// ExpectError checks that fn fails with an error whose root is
// expected. A nil expected means fn must succeed.
func ExpectError(t testing.TB, expected error, msg string, fn func() error) {
	actual := fn()
	if expected != errors.Root(actual) {
		t.Errorf("%s: got error %v, expected %v\n%s", msg, actual, expected, stackTrace())
	}
}

func FatalErr(t testing.TB, err error) {
	args := []interface{}{err}
	for _, frame := range errors.Stack(err) {
		file := frame.File
		if rel, err := filepath.Rel(wd, file); err == nil && !strings.HasPrefix(rel, "../") {
			file = rel
		}
		funcname := frame.Func[strings.LastIndexByte(frame.Func, '/')+1:]
		s := fmt.Sprintf("\n%s:%d: %s", file, frame.Line, funcname)
		args = append(args, s)
	}
	t.Fatal(args...)
}

func stackTrace() []byte {
	buf := make([]byte, 16384)
	len := runtime.Stack(buf, false)
	return buf[:len]
}
