package transport_test

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/ardanlabs/peerledger/foundation/blockchain/transport"
	"github.com/google/uuid"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Exchange(t *testing.T) {
	t.Log("Given the need to exchange frames between peers.")
	{
		dir := t.TempDir()
		id := uuid.New()

		ln, err := transport.Listen(dir, id)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to listen: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to listen.", success)

		if ln.Addr() != transport.Address(dir, id) {
			t.Fatalf("\t%s\tShould listen on the peer address: %s", failed, ln.Addr())
		}
		t.Logf("\t%s\tShould listen on the peer address.", success)

		if _, err := transport.Listen(dir, id); err == nil {
			t.Fatalf("\t%s\tShould not acquire the same address twice.", failed)
		}
		t.Logf("\t%s\tShould not acquire the same address twice.", success)

		if _, err := ln.Accept(10 * time.Millisecond); !errors.Is(err, transport.ErrNoConnection) {
			t.Fatalf("\t%s\tShould yield when nothing is pending: %v", failed, err)
		}
		t.Logf("\t%s\tShould yield when nothing is pending.", success)

		frame := []byte(`{"hello":"world"}`)
		errs := make(chan error, 1)
		go func() {
			errs <- transport.Send(ln.Addr(), frame, time.Second)
		}()

		conn, err := ln.Accept(time.Second)
		if err != nil {
			t.Fatalf("\t%s\tShould accept the connection: %v", failed, err)
		}
		defer conn.Close()

		got, err := transport.ReadFrame(conn, time.Second)
		if err != nil {
			t.Fatalf("\t%s\tShould read the frame: %v", failed, err)
		}
		if string(got) != string(frame) {
			t.Logf("\t%s\tgot: %s", failed, got)
			t.Logf("\t%s\texp: %s", failed, frame)
			t.Fatalf("\t%s\tShould read the full frame.", failed)
		}
		t.Logf("\t%s\tShould read the full frame.", success)

		if err := <-errs; err != nil {
			t.Fatalf("\t%s\tShould send without error: %v", failed, err)
		}
		t.Logf("\t%s\tShould send without error.", success)

		if err := ln.Close(); err != nil {
			t.Fatalf("\t%s\tShould close the listener: %v", failed, err)
		}
		if _, err := os.Stat(transport.Address(dir, id)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("\t%s\tShould remove the socket file: %v", failed, err)
		}
		t.Logf("\t%s\tShould remove the socket file.", success)

		err = transport.Send(transport.Address(dir, id), frame, 100*time.Millisecond)
		if !errors.Is(err, transport.ErrTransport) {
			t.Fatalf("\t%s\tShould fail to reach a gone peer: %v", failed, err)
		}
		t.Logf("\t%s\tShould fail to reach a gone peer.", success)
	}
}

func Test_ReadTimeout(t *testing.T) {
	t.Log("Given the need to not wait on a silent sender forever.")
	{
		ln, err := transport.Listen(t.TempDir(), uuid.New())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to listen: %v", failed, err)
		}
		defer ln.Close()

		client, err := dial(ln.Addr())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to dial: %v", failed, err)
		}
		defer client.Close()

		conn, err := ln.Accept(time.Second)
		if err != nil {
			t.Fatalf("\t%s\tShould accept the connection: %v", failed, err)
		}
		defer conn.Close()

		if _, err := transport.ReadFrame(conn, 50*time.Millisecond); !errors.Is(err, transport.ErrTransport) {
			t.Fatalf("\t%s\tShould time out the read: %v", failed, err)
		}
		t.Logf("\t%s\tShould time out the read.", success)
	}
}

func dial(addr string) (net.Conn, error) {
	return net.DialTimeout("unix", addr, time.Second)
}
