package server

import (
	"bufio"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const DefaultMaxLineBytes = 4096

// LineConn reads and writes newline-delimited text on a stream connection.
type LineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	maxLineBytes int
	writeTimeout time.Duration
}

func NewLineConn(conn net.Conn, maxLineBytes int, writeTimeout time.Duration) *LineConn {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(maxLineBytes, 1024)), maxLineBytes)
	return &LineConn{
		conn:         conn,
		scanner:      scanner,
		maxLineBytes: maxLineBytes,
		writeTimeout: writeTimeout,
	}
}

// ReadLine returns the next line with surrounding whitespace trimmed.
// A blank line yields an empty string and no error; the end of the stream yields io.EOF.
func (c *LineConn) ReadLine() (string, error) {
	if c.scanner.Scan() {
		return strings.TrimSpace(c.scanner.Text()), nil
	}
	err := c.scanner.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case stderrors.Is(err, bufio.ErrTooLong):
		return "", fmt.Errorf("%w: more than %d bytes", errors.ErrLineTooLong, c.maxLineBytes)
	default:
		return "", fmt.Errorf("read line: %w", err)
	}
}

// WriteLine writes text as is; the caller provides the trailing newline.
func (c *LineConn) WriteLine(text string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := io.WriteString(c.conn, text); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

func (c *LineConn) Close() error {
	return c.conn.Close()
}
