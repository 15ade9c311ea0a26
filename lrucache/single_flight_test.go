/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runConcurrently calls do from n goroutines, the first one starting before the others.
// It returns what each goroutine got and whether it panicked.
func runConcurrently(n int, do func() (*string, error)) (vals []*string, errs []error, panicked []bool) {
	vals, errs, panicked = make([]*string, n), make([]error, n), make([]bool, n)
	var wg sync.WaitGroup
	call := func(i int) {
		defer wg.Done()
		defer func() {
			if recover() != nil {
				panicked[i] = true
			}
		}()
		vals[i], errs[i] = do()
	}
	wg.Add(n)
	go call(0)
	time.Sleep(20 * time.Millisecond)
	for i := 1; i < n; i++ {
		go call(i)
	}
	wg.Wait()
	return vals, errs, panicked
}

func TestSingleFlightGroup(t *testing.T) {
	t.Run("same key", func(t *testing.T) {
		var g singleFlightGroup[string, *string]
		var calls int32
		post := "post"
		vals, errs, _ := runConcurrently(10, func() (*string, error) {
			return g.Do("k", func() (*string, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(100 * time.Millisecond)
				return &post, nil
			})
		})
		require.EqualValues(t, 1, calls)
		for i := range vals {
			require.NoError(t, errs[i])
			require.Equal(t, &post, vals[i])
		}
	})

	t.Run("error", func(t *testing.T) {
		var g singleFlightGroup[string, *string]
		readErr := errors.New("read failed")
		vals, errs, _ := runConcurrently(5, func() (*string, error) {
			return g.Do("k", func() (*string, error) {
				time.Sleep(100 * time.Millisecond)
				return nil, readErr
			})
		})
		for i := range vals {
			require.ErrorIs(t, errs[i], readErr)
			require.Nil(t, vals[i])
		}
	})

	t.Run("panic", func(t *testing.T) {
		var g singleFlightGroup[string, *string]
		vals, errs, panicked := runConcurrently(5, func() (*string, error) {
			return g.Do("k", func() (*string, error) {
				time.Sleep(100 * time.Millisecond)
				panic("boom")
			})
		})
		require.True(t, panicked[0], "loading goroutine must re-panic")
		for i := 1; i < len(vals); i++ {
			require.False(t, panicked[i])
			require.Nil(t, vals[i])
			var panicErr *PanicError
			require.ErrorAs(t, errs[i], &panicErr)
			require.Equal(t, "boom", panicErr.Value)
			require.NotEmpty(t, panicErr.Stack)
		}
		require.Empty(t, g.m, "failed call must be forgotten")
	})

	t.Run("goexit", func(t *testing.T) {
		var g singleFlightGroup[string, *string]
		started := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = g.Do("k", func() (*string, error) {
				close(started)
				time.Sleep(100 * time.Millisecond)
				runtime.Goexit()
				return nil, nil
			})
		}()
		<-started
		_, err := g.Do("k", func() (*string, error) { return nil, nil })
		<-done
		require.ErrorIs(t, err, ErrGoexit)
	})
}

func TestLRUCache_GetOrLoadPanic(t *testing.T) {
	cache, err := New[string, *string](10, nil)
	require.NoError(t, err)

	vals, errs, panicked := runConcurrently(2, func() (*string, error) {
		return cache.GetOrLoad("k", func(string) (*string, error) {
			time.Sleep(100 * time.Millisecond)
			panic("malformed front matter")
		})
	})
	require.True(t, panicked[0])
	require.False(t, panicked[1])
	require.Nil(t, vals[1])
	var panicErr *PanicError
	require.ErrorAs(t, errs[1], &panicErr)

	_, ok := cache.Get("k")
	require.False(t, ok)
	post := "post"
	got, err := cache.GetOrLoad("k", func(string) (*string, error) { return &post, nil })
	require.NoError(t, err)
	require.Equal(t, &post, got)
}
