package pickup

import "fmt"

// guard runs a host call and turns a panic in the binding layer into an error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
	}()
	return fn()
}
