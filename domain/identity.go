// Package domain contains core concepts of the chat relay.
// This file defines how a remote address is shown to other participants.
package domain

import (
	"encoding/binary"
	"encoding/hex"
	"net/netip"

	"github.com/cespare/xxhash/v2"
)

// ServerToken is displayed in place of a token for events without origin.
const ServerToken = "Server"

// DisplayToken anonymizes an address for peers.
// The token is the big-endian hex form of the xxhash64 digest of the address bytes.
func DisplayToken(addr netip.Addr) string {
	if !addr.IsValid() {
		return ServerToken
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64(addr.AsSlice()))
	return hex.EncodeToString(buf[:])
}

// AddrFromNet normalizes a remote endpoint into the address used as identity.
// IPv4-mapped IPv6 addresses are unmapped so a client keeps a single identity.
func AddrFromNet(addrPort netip.AddrPort) netip.Addr {
	return addrPort.Addr().Unmap()
}
