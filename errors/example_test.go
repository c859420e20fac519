package errors_test

import (
	"fmt"

	"github.com/jamesob/sapio/errors"
)

var ErrUnusablePath = errors.New("unusable spending path")

func ExampleSub() {
	err := buildTemplate()
	err = errors.Sub(ErrUnusablePath, err)
	fmt.Println(errors.Root(err) == ErrUnusablePath)
	fmt.Println(err)
	// Output:
	// true
	// unusable spending path: template has no outputs
}

func buildTemplate() error { return errors.New("template has no outputs") }
