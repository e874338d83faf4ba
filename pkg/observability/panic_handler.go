package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the stack trace. Meant for
// defer in background goroutines, like the gauge refresh job, where a panic
// would otherwise kill the process outside any request handler. The panic is
// not re-raised.
func RecoverPanic(logger *Logger, operation string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("operation", operation).
			Error("Panic recovered")
	}
}

// MustRecover converts a recovered panic value into an error, for code that
// wraps panicky callees behind an error return:
//
//	defer func() { err = observability.MustRecover(recover()) }()
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
