// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/spvd/spvd/util/binaryserializer"
)

// maxNetAddressPayload returns the max payload size for a bitcoin NetAddress.
func maxNetAddressPayload(ts bool) uint32 {
	// Services 8 bytes + ip 16 bytes + port 2 bytes.
	plen := uint32(26)
	if ts {
		// Timestamp 4 bytes.
		plen += 4
	}
	return plen
}

// NetAddress defines information about a peer on the network including the
// services it supports, its IP address, and port. Addresses relayed in addr
// messages also carry the time they were last seen; the addresses inside a
// version message do not.
type NetAddress struct {
	// Last time the address was seen, in unix seconds. None for
	// addresses that are encoded without a timestamp.
	Timestamp fn.Option[uint32]

	// Bitfield which identifies the services supported by the address.
	Services ServiceFlag

	// IP address of the peer. Always stored in its 16-byte form.
	IP net.IP

	// Port the peer is using. This is encoded in big endian on the wire
	// which differs from most everything else.
	Port uint16
}

// HasService returns whether the specified service is supported by the address.
func (na *NetAddress) HasService(service ServiceFlag) bool {
	return na.Services&service == service
}

// AddService adds service as a supported service by the peer generating the
// message.
func (na *NetAddress) AddService(service ServiceFlag) {
	na.Services |= service
}

// TCPAddress converts the NetAddress to *net.TCPAddr
func (na *NetAddress) TCPAddress() *net.TCPAddr {
	return &net.TCPAddr{
		IP:   na.IP,
		Port: int(na.Port),
	}
}

// WithoutTimestamp returns a copy of na with the timestamp cleared, as it
// would appear inside a version message.
func (na *NetAddress) WithoutTimestamp() *NetAddress {
	return &NetAddress{
		Timestamp: fn.None[uint32](),
		Services:  na.Services,
		IP:        na.IP,
		Port:      na.Port,
	}
}

func (na *NetAddress) String() string {
	ts := "-"
	na.Timestamp.WhenSome(func(t uint32) {
		ts = time.Unix(int64(t), 0).UTC().Format(time.RFC3339)
	})
	return fmt.Sprintf("%s (services %s, seen %s)",
		net.JoinHostPort(na.IP.String(), fmt.Sprint(na.Port)), na.Services, ts)
}

// NewNetAddressIPPort returns a new NetAddress without a timestamp using the
// provided IP, port, and supported services.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	return &NetAddress{
		Timestamp: fn.None[uint32](),
		Services:  services,
		IP:        ip.To16(),
		Port:      port,
	}
}

// NewNetAddressTimestamp returns a new NetAddress using the provided
// timestamp, IP, port, and supported services. The timestamp is truncated
// to whole seconds since the protocol doesn't support better.
func NewNetAddressTimestamp(
	timestamp time.Time, services ServiceFlag, ip net.IP, port uint16) *NetAddress {

	na := NewNetAddressIPPort(ip, port, services)
	na.Timestamp = fn.Some(uint32(timestamp.Unix()))
	return na
}

// NewNetAddress returns a new NetAddress without a timestamp using the
// provided TCP address and supported services.
func NewNetAddress(addr *net.TCPAddr, services ServiceFlag) *NetAddress {
	return NewNetAddressIPPort(addr.IP, uint16(addr.Port), services)
}

// readNetAddress reads an encoded NetAddress from r depending on whether or
// not the timestamp is included per ts. Some messages like version do not
// include the timestamp.
func readNetAddress(r io.Reader, na *NetAddress, ts bool) error {
	var ip [16]byte

	na.Timestamp = fn.None[uint32]()
	if ts {
		var timestamp uint32
		err := ReadElement(r, &timestamp)
		if err != nil {
			return err
		}
		na.Timestamp = fn.Some(timestamp)
	}

	err := ReadElements(r, &na.Services, &ip)
	if err != nil {
		return err
	}
	port, err := binaryserializer.Uint16(r, bigEndian)
	if err != nil {
		return err
	}

	na.IP = net.IP(ip[:])
	na.Port = port
	return nil
}

// writeNetAddress serializes a NetAddress to w depending on whether or not
// the timestamp is included per ts. A missing timestamp is written as zero
// when ts is set.
func writeNetAddress(w io.Writer, na *NetAddress, ts bool) error {
	if ts {
		err := WriteElement(w, na.Timestamp.UnwrapOr(0))
		if err != nil {
			return err
		}
	}

	// Ensure to always write 16 bytes even if the ip is nil.
	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	err := WriteElements(w, na.Services, ip)
	if err != nil {
		return err
	}

	return binaryserializer.PutUint16(w, bigEndian, na.Port)
}
