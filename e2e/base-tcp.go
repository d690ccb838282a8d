package e2e

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseTcpSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseTcpSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping end-to-end suite")
	}
}

// Client is one participant connected to the relay under test.
type Client struct {
	s      *BaseTcpSuite
	name   string
	conn   net.Conn
	reader *bufio.Reader
}

// Connect opens a participant connection and prints a colorized header for the step.
func (s *BaseTcpSuite) Connect(name string) *Client {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	conn, err := net.DialTimeout("tcp", s.Config.RelayAddr, s.Config.Timeout)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &Client{s: s, name: name, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *Client) Send(line string) {
	_, err := io.WriteString(c.conn, line+"\n")
	c.s.Require().NoError(err, c.name+" failed to send")
	c.s.T().Logf("%s >> %s", c.name, line)
}

// ReadUntil reads broadcast lines until one matches, skipping other participants' traffic.
func (c *Client) ReadUntil(match func(line string) bool) string {
	for {
		c.s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(c.s.Config.Timeout)))
		line, err := c.reader.ReadString('\n')
		c.s.Require().NoError(err, c.name+" read failed")
		c.s.T().Logf("%s << %s", c.name, strings.TrimRight(line, "\n"))
		if match(line) {
			return line
		}
	}
}

func (c *Client) Close() {
	_ = c.conn.Close()
}
