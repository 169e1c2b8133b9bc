package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCoins(t *testing.T) {
	cases := map[uint64]string{
		0:           "0",
		1:           "0.00000001",
		100000000:   "1",
		1050000000:  "10.5",
		12345678901: "123.45678901",
	}
	for sats, want := range cases {
		assert.Equal(t, want, formatCoins(sats))
	}
}

func TestEveryRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs int
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = every(ctx, time.Millisecond, func(context.Context) error {
			runs++
			if runs == 3 {
				cancel()
			}
			return nil
		})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 3, runs)
}
