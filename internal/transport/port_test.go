package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort_AuthenticateAcceptsAuthOK(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	done := make(chan *Port, 1)
	errc := make(chan error, 1)
	go func() {
		p, err := newPort(client, &Credentials{Profile: "p", Password: "s"}, 0)
		if err != nil {
			errc <- err
			return
		}
		done <- p
	}()

	buf := make([]byte, 2)
	_, err := server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ps", string(buf))

	_, err = server.Write([]byte("AuthOK"))
	require.NoError(t, err)

	select {
	case <-done:
	case err := <-errc:
		t.Fatalf("unexpected auth error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestPort_AuthenticateRejectsWrongReply(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := newPort(client, &Credentials{Profile: "p", Password: "s"}, 0)
		errc <- err
	}()

	buf := make([]byte, 2)
	server.Read(buf)
	server.Write([]byte("NopeOK"))

	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestPort_WriteSurfacesErrors(t *testing.T) {
	client, server := net.Pipe()

	p, err := newPort(client, nil, 0)
	require.NoError(t, err)

	server.Close()
	err = p.Write([]byte{0x01})
	assert.Error(t, err)

	select {
	case e := <-p.ErrC:
		assert.Error(t, e)
	case <-time.After(time.Second):
		t.Fatal("expected fatal error on ErrC")
	}
}
