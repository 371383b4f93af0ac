package connector

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kafitramarna/replika/internal/config"
	"github.com/kafitramarna/replika/internal/logger"
	"github.com/kafitramarna/replika/internal/metrics"
	"github.com/kafitramarna/replika/pkg/protocol"
)

// State is the connector lifecycle state.
type State uint32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Connector owns a single authenticated connection to a MySQL source server.
// The endpoint identity is fixed at construction; only the lifecycle methods
// mutate state, and the state transition is an atomic compare-and-set so
// concurrent Connect/Disconnect calls cannot race into a half-open socket:
// the losing side observes a no-op.
type Connector struct {
	address  string
	username string
	password string
	database string
	charset  uint8

	timeout     time.Duration
	recvBufSize int
	sendBufSize int
	keepAlive   bool
	noDelay     bool

	state atomic.Uint32

	mu       sync.RWMutex
	conn     *net.TCPConn
	greeting *protocol.Greeting
}

// New creates a disconnected Connector for the configured source endpoint.
func New(cfg *config.Config) *Connector {
	return &Connector{
		address:     cfg.Source.Address(),
		username:    cfg.Source.User,
		password:    cfg.Source.Password,
		database:    cfg.Source.Database,
		charset:     cfg.Source.Charset,
		timeout:     cfg.Socket.Timeout,
		recvBufSize: cfg.Socket.ReceiveBufferSize,
		sendBufSize: cfg.Socket.SendBufferSize,
		keepAlive:   cfg.Socket.KeepAlive,
		noDelay:     cfg.Socket.NoDelay,
	}
}

// Address returns the source endpoint this connector targets.
func (c *Connector) Address() string {
	return c.address
}

// State returns the lifecycle flag. Note that the flag and the transport's
// own liveness can disagree after a network drop; see IsConnected.
func (c *Connector) State() State {
	return State(c.state.Load())
}

// Greeting returns the server greeting of the current connection, or nil if
// no handshake has completed.
func (c *Connector) Greeting() *protocol.Greeting {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.greeting
}

// Connect opens the socket, configures it, and runs the authentication
// handshake. Calling Connect on an already-connected instance is a logged
// no-op. On any failure the connector rolls back to disconnected and returns
// a connection-failure error wrapping the cause; no half-open socket is left
// behind.
func (c *Connector) Connect() error {
	if !c.state.CompareAndSwap(uint32(Disconnected), uint32(Connected)) {
		logger.Warn("connector already connected", "address", c.address)
		return nil
	}

	start := time.Now()
	if err := c.open(); err != nil {
		metrics.RecordConnectAttempt(false)
		metrics.RecordError("connect")
		c.rollback()
		return fmt.Errorf("%w: connect %s: %w", ErrConnectionFailure, c.address, err)
	}

	metrics.RecordConnectAttempt(true)
	metrics.ObserveHandshakeDuration(time.Since(start).Seconds())
	metrics.SetConnectionState(true)
	logger.Info("connected to source", "address", c.address, "user", c.username)
	return nil
}

// Reconnect tears the connection down and dials again. Errors from either
// phase propagate.
func (c *Connector) Reconnect() error {
	if err := c.Disconnect(); err != nil {
		return err
	}
	return c.Connect()
}

// Disconnect closes the socket. Calling Disconnect on an already-disconnected
// instance is a no-op. The state is forced to disconnected even if the close
// fails; the close error is still reported.
func (c *Connector) Disconnect() error {
	if !c.state.CompareAndSwap(uint32(Connected), uint32(Disconnected)) {
		logger.Info("connector not connected", "address", c.address)
		return nil
	}

	conn := c.takeConn()
	metrics.SetConnectionState(false)
	if conn != nil {
		if err := conn.Close(); err != nil {
			metrics.RecordError("disconnect")
			return fmt.Errorf("%w: close %s: %w", ErrDisconnectFailure, c.address, err)
		}
	}
	logger.Info("disconnected from source", "address", c.address)
	return nil
}

// IsConnected reports transport-level liveness, not the local flag: it probes
// the socket with a short read deadline. A timeout means the peer is still
// there; anything else means the connection is gone.
func (c *Connector) IsConnected() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return false
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	defer conn.SetReadDeadline(time.Time{})

	one := make([]byte, 1)
	_, err := conn.Read(one)
	if err == nil {
		// No data should arrive unsolicited after the handshake.
		logger.Warn("unexpected data on idle connection", "address", c.address)
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	return false
}

// open dials, configures the socket, and drives the handshake to completion.
func (c *Connector) open() error {
	dialer := net.Dialer{Timeout: c.timeout, Control: reuseAddrControl}
	raw, err := dialer.Dial("tcp", c.address)
	if err != nil {
		return err
	}
	conn := raw.(*net.TCPConn)

	if err := c.configure(conn); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	greeting, err := c.negotiate(conn)
	if err != nil {
		return err
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.greeting = greeting
	c.mu.Unlock()
	return nil
}

func (c *Connector) configure(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(c.keepAlive); err != nil {
		return fmt.Errorf("set keep-alive: %w", err)
	}
	if err := conn.SetNoDelay(c.noDelay); err != nil {
		return fmt.Errorf("set no-delay: %w", err)
	}
	if c.recvBufSize > 0 {
		if err := conn.SetReadBuffer(c.recvBufSize); err != nil {
			return fmt.Errorf("set receive buffer: %w", err)
		}
	}
	if c.sendBufSize > 0 {
		if err := conn.SetWriteBuffer(c.sendBufSize); err != nil {
			return fmt.Errorf("set send buffer: %w", err)
		}
	}
	return nil
}

// rollback forces the connector back to disconnected after a failed connect,
// closing whatever was opened. Close errors are deliberately dropped here:
// the connect failure is what the caller needs to see.
func (c *Connector) rollback() {
	if conn := c.takeConn(); conn != nil {
		conn.Close()
	}
	metrics.SetConnectionState(false)
	c.state.Store(uint32(Disconnected))
}

func (c *Connector) takeConn() *net.TCPConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.conn
	c.conn = nil
	c.greeting = nil
	return conn
}
