// Package transport provides the point to point stream support peers use to
// exchange frames. A peer's address is the path of a unix socket and every
// frame travels on its own connection, terminated by the sender closing its
// write side.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// MaxFrameSize is the largest frame a peer will read.
const MaxFrameSize = 1 << 20

// Extension is the file extension of a peer's socket.
const Extension = ".sock"

// Set of errors the transport can return.
var (
	ErrTransport    = errors.New("transport failure")
	ErrNoConnection = errors.New("no pending connection")
	ErrFrameTooBig  = errors.New("frame too big")
)

// Address returns the socket path for the specified peer id.
func Address(dir string, id uuid.UUID) string {
	return filepath.Join(dir, id.String()+Extension)
}

// =============================================================================

// Listener is the endpoint a peer accepts connections on. The socket file
// is removed when the listener is closed.
type Listener struct {
	ln   *net.UnixListener
	addr string
}

// Listen acquires the socket for the peer id inside the directory. The
// directory is created if needed.
func Listen(dir string, id uuid.UUID) (*Listener, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating peer directory: %w", ErrTransport, err)
	}

	addr := Address(dir, id)

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: addr, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", ErrTransport, addr, err)
	}
	ln.SetUnlinkOnClose(true)

	return &Listener{ln: ln, addr: addr}, nil
}

// Addr returns the address other peers use to reach this listener.
func (l *Listener) Addr() string {
	return l.addr
}

// Accept waits at most the specified duration for a connection. When no
// connection is pending ErrNoConnection is returned so the caller can yield.
func (l *Listener) Accept(wait time.Duration) (net.Conn, error) {
	if err := l.ln.SetDeadline(time.Now().Add(wait)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	conn, err := l.ln.AcceptUnix()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrNoConnection
		}
		return nil, fmt.Errorf("%w: accept: %w", ErrTransport, err)
	}

	return conn, nil
}

// Close releases the socket and removes the socket file.
func (l *Listener) Close() error {
	err := l.ln.Close()

	// The unlink on close is skipped when the listener was already closed
	// with an error, make sure the file is gone either way.
	if rmErr := os.Remove(l.addr); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}

	return err
}

// =============================================================================

// ReadFrame reads a full frame from the connection until the sender closes
// its write side or the timeout expires.
func ReadFrame(conn net.Conn, timeout time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	data, err := io.ReadAll(io.LimitReader(conn, MaxFrameSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrTransport, err)
	}

	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooBig
	}

	return data, nil
}

// Send opens a new connection to the address, writes the frame and closes
// the write side so the receiver knows the frame is complete.
func Send(addr string, frame []byte, timeout time.Duration) error {
	conn, err := net.DialTimeout("unix", addr, timeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrTransport, addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrTransport, addr, err)
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return fmt.Errorf("%w: close write %s: %w", ErrTransport, addr, err)
		}
	}

	return nil
}
