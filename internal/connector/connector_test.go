package connector

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kafitramarna/replika/internal/config"
	"github.com/kafitramarna/replika/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a scripted MySQL server on a local listener.
type fakeSource struct {
	listener net.Listener
	accepts  atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
}

// startFakeSource serves a scripted handshake on 127.0.0.1. mode "ok"
// completes the handshake and holds the connection open; "reject" answers
// the auth packet with an ERR and hangs up.
func startFakeSource(t *testing.T, mode string) *fakeSource {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fs := &fakeSource{listener: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			fs.accepts.Add(1)
			fs.mu.Lock()
			fs.conns = append(fs.conns, conn)
			fs.mu.Unlock()
			go fs.serve(conn, mode)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return fs
}

func (fs *fakeSource) serve(conn net.Conn, mode string) {
	protocol.WritePacket(conn, 0, greetingBody([]byte("01234567"), []byte("890123456789")))
	pkt, err := protocol.ReadPacket(conn)
	if err != nil {
		conn.Close()
		return
	}

	switch mode {
	case "reject":
		protocol.WritePacket(conn, pkt.SequenceID+1, errBody(1045, "Access denied for user 'repl'"))
		conn.Close()
	default:
		protocol.WritePacket(conn, pkt.SequenceID+1, okBody())
		// Hold the connection open; the connector owns its lifetime now.
		buf := make([]byte, 1)
		conn.Read(buf)
		conn.Close()
	}
}

// closeConns drops every accepted connection, simulating a server-side crash.
func (fs *fakeSource) closeConns() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, conn := range fs.conns {
		conn.Close()
	}
	fs.conns = nil
}

func sourceConfig(addr string) *config.Config {
	host, port, _ := net.SplitHostPort(addr)
	cfg := config.Default()
	cfg.Source.Host = host
	cfg.Source.Port = atoiOrZero(port)
	cfg.Source.User = "repl"
	cfg.Source.Password = "secret"
	cfg.Socket.Timeout = 2 * time.Second
	return cfg
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func TestConnectorConnect(t *testing.T) {
	fs := startFakeSource(t, "ok")
	c := New(sourceConfig(fs.listener.Addr().String()))

	require.NoError(t, c.Connect())
	assert.Equal(t, Connected, c.State())
	assert.True(t, c.IsConnected())

	g := c.Greeting()
	require.NotNil(t, g)
	assert.Equal(t, "5.7.36-log", g.ServerVersion)

	require.NoError(t, c.Disconnect())
	assert.Equal(t, Disconnected, c.State())
	assert.False(t, c.IsConnected())
	assert.Nil(t, c.Greeting())
}

func TestConnectorConnectTwice(t *testing.T) {
	fs := startFakeSource(t, "ok")
	c := New(sourceConfig(fs.listener.Addr().String()))

	require.NoError(t, c.Connect())
	// Second connect is an advisory no-op: no error, no second dial.
	require.NoError(t, c.Connect())
	assert.Equal(t, int32(1), fs.accepts.Load())

	require.NoError(t, c.Disconnect())
}

func TestConnectorDisconnectNeverConnected(t *testing.T) {
	cfg := config.Default()
	cfg.Source.User = "repl"
	c := New(cfg)

	assert.NoError(t, c.Disconnect())
	assert.Equal(t, Disconnected, c.State())
	assert.False(t, c.IsConnected())
}

func TestConnectorAuthRejectedRollsBack(t *testing.T) {
	fs := startFakeSource(t, "reject")
	c := New(sourceConfig(fs.listener.Addr().String()))

	err := c.Connect()
	require.ErrorIs(t, err, ErrConnectionFailure)
	require.ErrorIs(t, err, ErrAuthRejected)

	// Rollback left no half-open socket behind.
	assert.Equal(t, Disconnected, c.State())
	assert.False(t, c.IsConnected())
	assert.Nil(t, c.Greeting())
}

func TestConnectorConnectRefused(t *testing.T) {
	// Grab a free port and close it again so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := New(sourceConfig(addr))
	err = c.Connect()
	require.ErrorIs(t, err, ErrConnectionFailure)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnectorReconnect(t *testing.T) {
	fs := startFakeSource(t, "ok")
	c := New(sourceConfig(fs.listener.Addr().String()))

	require.NoError(t, c.Connect())
	require.NoError(t, c.Reconnect())
	assert.Equal(t, Connected, c.State())
	assert.Equal(t, int32(2), fs.accepts.Load())

	require.NoError(t, c.Disconnect())
}

func TestConnectorDetectsDroppedPeer(t *testing.T) {
	fs := startFakeSource(t, "ok")
	c := New(sourceConfig(fs.listener.Addr().String()))

	require.NoError(t, c.Connect())
	require.True(t, c.IsConnected())

	// Kill the server side; the local flag still says connected but the
	// transport-level probe must notice.
	fs.closeConns()
	assert.Equal(t, Connected, c.State())
	assert.Eventually(t, func() bool {
		return !c.IsConnected()
	}, 2*time.Second, 50*time.Millisecond)

	require.NoError(t, c.Disconnect())
}
