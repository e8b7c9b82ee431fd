package downstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

// TCPConnector dials a loopback TCP endpoint for every session. Grounded on
// the teacher's plain net.Dial usage (go-winio has no TCP code of its own,
// so this follows the standard library dialer idiom used throughout the
// example pack, e.g. ralphschuler-tut's dialLocal).
type TCPConnector struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPConnector builds a connector for host:port, defaulting the dial
// timeout to 3 seconds (the value of config.DefaultConnectTimeout) when
// timeout is zero or negative.
func NewTCPConnector(host string, port uint16, timeout time.Duration) *TCPConnector {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TCPConnector{Addr: fmt.Sprintf("%s:%d", host, port), Timeout: timeout}
}

func (c *TCPConnector) Connect(ctx context.Context) (ByteStream, error) {
	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial downstream tcp %s", c.Addr)
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, errors.Errorf("dial downstream tcp %s: unexpected connection type %T", c.Addr, conn)
	}
	return &tcpStream{TCPConn: tcpConn}, nil
}

func (c *TCPConnector) Target() string { return "tcp:" + c.Addr }

func (c *TCPConnector) Close() error { return nil }

// tcpStream adapts *net.TCPConn to ByteStream, exposing its native
// half-close support.
type tcpStream struct {
	*net.TCPConn
}

func (s *tcpStream) CloseWrite() error { return s.TCPConn.CloseWrite() }
