package server

import (
	"errors"
	"net"
	"sync"
	"time"
)

type deadlineListener interface {
	SetDeadline(t time.Time) error
}

// readyListener calls ready the first time http.Server.Serve asks for a
// connection, once a non-blocking Accept has shown the listener is open. A
// listener that fails that check never reports ready.
type readyListener struct {
	net.Listener
	ready func()
	once  sync.Once
}

func (l *readyListener) Accept() (net.Conn, error) {
	var (
		conn    net.Conn
		err     error
		checked bool
	)
	l.once.Do(func() {
		checked = true
		conn, err = l.check()
	})
	if checked && (conn != nil || err != nil) {
		return conn, err
	}
	return l.Listener.Accept()
}

// check polls the listener with an expired deadline. A timeout means it is
// open with nothing queued; a connection that was already queued is handed
// back to the caller.
func (l *readyListener) check() (net.Conn, error) {
	dl, ok := l.Listener.(deadlineListener)
	if !ok {
		l.ready()
		return nil, nil
	}

	if err := dl.SetDeadline(time.Now()); err != nil {
		return nil, err
	}
	conn, err := l.Listener.Accept()
	if resetErr := dl.SetDeadline(time.Time{}); resetErr != nil && err == nil {
		conn.Close()
		return nil, resetErr
	}

	var netErr net.Error
	switch {
	case err == nil:
		l.ready()
		return conn, nil
	case errors.As(err, &netErr) && netErr.Timeout():
		l.ready()
		return nil, nil
	default:
		return nil, err
	}
}
