package swim

import (
	"fmt"
	"net"

	"github.com/coreswim/swim/internal/domain"
)

// Transport is the datagram socket contract (§1, §6): "send/receive raw
// byte frames to/from a host:port." It is an external collaborator; the
// core only depends on this interface so tests can substitute an
// in-memory transport.
type Transport interface {
	// LocalAddr returns the address the transport is bound to.
	LocalAddr() string
	// WriteTo sends a frame to host:port. MUST be safe for concurrent
	// calls (§5): the send path is multi-producer.
	WriteTo(frame []byte, host string, port uint16) error
	// Close releases the underlying socket.
	Close() error
}

// incomingFunc is invoked once per received datagram, with the raw bytes
// and the sender's observed address.
type incomingFunc func(frame []byte, fromHost string, fromPort uint16)

// udpTransport is the default Transport: a single *net.UDPConn shared
// between one receive goroutine and many concurrent senders, following
// the same pattern as the teacher's gossip.SWIM.conn.
type udpTransport struct {
	conn    *net.UDPConn
	onFrame incomingFunc
	done    chan struct{}
}

// listenUDP binds a UDP socket at bindAddr (host:port) and starts the
// receive loop, invoking onFrame for every datagram until Close.
func listenUDP(bindAddr string, onFrame incomingFunc) (*udpTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", domain.ErrTransport, bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", domain.ErrTransport, bindAddr, err)
	}

	t := &udpTransport{conn: conn, onFrame: onFrame, done: make(chan struct{})}
	go t.receiveLoop()
	return t, nil
}

func (t *udpTransport) receiveLoop() {
	buf := make([]byte, 65536)
	for {
		select {
		case <-t.done:
			return
		default:
		}

		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				continue
			}
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])
		host := from.IP.String()
		t.onFrame(frame, host, uint16(from.Port))
	}
}

// LocalAddr implements Transport.
func (t *udpTransport) LocalAddr() string {
	return t.conn.LocalAddr().String()
}

// WriteTo implements Transport. net.UDPConn is safe for concurrent use by
// multiple goroutines, satisfying the §5 multi-producer send requirement
// without an additional lock.
func (t *udpTransport) WriteTo(frame []byte, host string, port uint16) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("%w: resolve %s:%d: %v", domain.ErrTransport, host, port, err)
	}
	if _, err := t.conn.WriteToUDP(frame, addr); err != nil {
		return fmt.Errorf("%w: write to %s:%d: %v", domain.ErrTransport, host, port, err)
	}
	return nil
}

// Close implements Transport.
func (t *udpTransport) Close() error {
	close(t.done)
	return t.conn.Close()
}
