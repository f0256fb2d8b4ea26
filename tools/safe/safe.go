package safe

import (
	"fmt"
	"reflect"

	"AirChat/logger"
	"AirChat/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required fields during struct initialization.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// SafeGo starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
func SafeGo(f func()) {
	go Run(f)
}

// Run calls f in the current goroutine and turns a panic into a log line.
func Run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[SafeGo] panic recovered", zap.Error(errs.ErrPanic(r)))
		}
	}()
	f()
}
