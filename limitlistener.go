package main

import "net"

// limitListener caps concurrently accepted connections at n, the
// AppConfig.MaxConnections bound from spec.md's data model. No pack
// dependency addresses this directly, so it is the one piece of the
// bootstrap kept on the standard library.
type limitListener struct {
	net.Listener
	sem chan struct{}
}

func newLimitListener(l net.Listener, n int) net.Listener {
	if n <= 0 {
		return l
	}
	return &limitListener{Listener: l, sem: make(chan struct{}, n)}
}

func (l *limitListener) Accept() (net.Conn, error) {
	l.sem <- struct{}{}
	c, err := l.Listener.Accept()
	if err != nil {
		<-l.sem
		return nil, err
	}
	return &limitConn{Conn: c, release: func() { <-l.sem }}, nil
}

type limitConn struct {
	net.Conn
	release func()
	closed  bool
}

func (c *limitConn) Close() error {
	err := c.Conn.Close()
	if !c.closed {
		c.closed = true
		c.release()
	}
	return err
}
