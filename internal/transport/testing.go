package transport

import "net"

// DialFromConnForTest wraps an already-established connection (e.g. one
// half of a net.Pipe) as a Port, bypassing net.Dial. Used by other
// packages' tests to exercise a Session against a fake transport
// without a real mixrack.
func DialFromConnForTest(conn net.Conn) (*Port, error) {
	return newPort(conn, nil, 0)
}
