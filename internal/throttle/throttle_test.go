/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    Rate
		wantErr bool
	}{
		{in: "60/m", want: Rate{60, time.Minute}},
		{in: " 5 / s ", want: Rate{5, time.Second}},
		{in: "1000/h", want: Rate{1000, time.Hour}},
		{in: "0/m", wantErr: true},
		{in: "10/d", wantErr: true},
		{in: "10", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRate(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
		require.Equal(t, tt.want, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) Rate {
	r, err := ParseRate(s)
	require.NoError(t, err)
	return r
}

func TestLeakyBucketLimiter(t *testing.T) {
	lim, err := NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Minute}, 1, 100)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allow, _, err := lim.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, allow, "request %d", i+1)
	}
	allow, retryAfter, err := lim.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.False(t, allow)
	require.Greater(t, retryAfter, time.Duration(0))
	require.LessOrEqual(t, retryAfter, time.Minute)

	allow, _, err = lim.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	require.True(t, allow)
}

func TestSlidingWindowLimiter(t *testing.T) {
	lim, err := NewSlidingWindowLimiter(Rate{Count: 2, Duration: time.Hour}, 1)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allow, retryAfter, err := lim.Allow(ctx, "a")
		require.NoError(t, err)
		require.True(t, allow)
		require.Zero(t, retryAfter)
	}
	allow, retryAfter, err := lim.Allow(ctx, "a")
	require.NoError(t, err)
	require.False(t, allow)
	require.Greater(t, retryAfter, time.Duration(0))
	require.LessOrEqual(t, retryAfter, time.Hour)

	// The store holds a single key, so "b" evicts "a" and "a" starts over.
	allow, _, _ = lim.Allow(ctx, "b")
	require.True(t, allow)
	require.Equal(t, 1, lim.TrackedKeys())
	allow, _, _ = lim.Allow(ctx, "a")
	require.True(t, allow)
}

func TestNew(t *testing.T) {
	lim, err := New(&Config{Alg: AlgSlidingWindow, Rate: Rate{1, time.Second}, MaxKeys: 10})
	require.NoError(t, err)
	require.IsType(t, &SlidingWindowLimiter{}, lim)

	lim, err = New(&Config{Alg: AlgLeakyBucket, Rate: Rate{1, time.Second}, MaxKeys: 10})
	require.NoError(t, err)
	require.IsType(t, &LeakyBucketLimiter{}, lim)

	_, err = New(&Config{Alg: "tokenBucket", Rate: Rate{1, time.Second}, MaxKeys: 10})
	require.Error(t, err)

	_, err = NewLeakyBucketLimiter(Rate{}, 0, 10)
	require.Error(t, err)
}
