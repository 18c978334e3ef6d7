package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimitListenerZeroOrNegativeReturnsUnwrapped(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	assert.Same(t, l, newLimitListener(l, 0))
	assert.Same(t, l, newLimitListener(l, -1))
}

func TestLimitListenerReleasesSlotOnClose(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	limited := newLimitListener(l, 1)

	dial := func() {
		c, dialErr := net.Dial("tcp", l.Addr().String())
		require.NoError(t, dialErr)
		c.Close()
	}

	go dial()
	conn, err := limited.Accept()
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// With the single slot released, a second accept must not block forever.
	go dial()
	conn2, err := limited.Accept()
	require.NoError(t, err)
	conn2.Close()
}

func TestLimitConnCloseIsIdempotent(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	limited := newLimitListener(l, 2)
	go func() {
		c, _ := net.Dial("tcp", l.Addr().String())
		if c != nil {
			c.Close()
		}
	}()

	conn, err := limited.Accept()
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "closing twice must not double-release the semaphore")
}
