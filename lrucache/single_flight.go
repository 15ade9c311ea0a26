/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrGoexit is returned to waiting callers when the loading goroutine called runtime.Goexit.
var ErrGoexit = errors.New("runtime.Goexit was called")

// PanicError is returned to waiting callers when the loader panicked.
// The loading goroutine itself re-panics with Value.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("loader panicked: %v\n\n%s", p.Value, p.Stack)
}

// Unwrap returns the panic value if it's an error.
func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

func newPanicError(v interface{}) *PanicError {
	stack := debug.Stack()
	// The "goroutine N [running]:" header no longer describes anything by the time waiters read it.
	if i := bytes.IndexByte(stack, '\n'); i >= 0 {
		stack = stack[i+1:]
	}
	return &PanicError{Value: v, Stack: stack}
}

type singleFlightCall[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// singleFlightGroup collapses concurrent calls for the same key into one.
// Waiters never see a zero value with a nil error when the call did not return normally.
type singleFlightGroup[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*singleFlightCall[V]
}

func (g *singleFlightGroup[K, V]) Do(key K, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*singleFlightCall[V])
	}
	if call, ok := g.m[key]; ok {
		g.mu.Unlock()
		call.wg.Wait()
		return call.val, call.err
	}
	call := &singleFlightCall[V]{}
	call.wg.Add(1)
	g.m[key] = call
	g.mu.Unlock()

	return g.run(key, call, fn)
}

func (g *singleFlightGroup[K, V]) run(key K, call *singleFlightCall[V], fn func() (V, error)) (V, error) {
	returned := false
	var panicErr *PanicError

	// Outer defer: runs on normal return, after a recovered panic and on runtime.Goexit
	// (which cannot be recovered, hence two defers).
	defer func() {
		if !returned && panicErr == nil {
			call.err = ErrGoexit
		}
		call.wg.Done()

		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()

		if panicErr != nil {
			panic(panicErr.Value)
		}
	}()

	defer func() {
		if returned {
			return
		}
		if v := recover(); v != nil {
			panicErr = newPanicError(v)
			call.err = panicErr
		}
	}()

	call.val, call.err = fn()
	returned = true
	return call.val, call.err
}
