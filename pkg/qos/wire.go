// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Wire format, fixed field order, big endian:
//
//	policyId      int32
//	dscp          int32
//	userPriority  int32
//	srcAddr       presence byte + 6 bytes if present
//	dstAddr       presence byte + 6 bytes if present
//	srcPort       int32
//	protocol      int32
//	dstPortRange  length byte (0 or 2) + 2 * int32 if present
//	direction     int32
//
// The translated policy ID is never transmitted; it is assigned locally by
// the receiving system after decode.

const (
	macLen = 6

	// wireMinLen is the encoded size with both addresses and the port
	// range absent: six int32 fields plus three presence/length bytes.
	wireMinLen = 6*4 + 3
)

// SerializedLen returns the number of bytes SerializeTo will write for p.
func (p *Policy) SerializedLen() int {
	n := wireMinLen
	if p.srcAddr != nil {
		n += macLen
	}
	if p.dstAddr != nil {
		n += macLen
	}
	if p.dstPortRange != nil {
		n += 2 * 4
	}
	return n
}

// SerializeTo encodes p into b and returns the number of bytes written.
// It fails if b is shorter than SerializedLen.
func (p *Policy) SerializeTo(b []byte) (int, error) {
	if len(b) < p.SerializedLen() {
		return 0, fmt.Errorf("buffer too small: have %d, need %d", len(b), p.SerializedLen())
	}
	offset := 0
	putInt32 := func(v int32) {
		binary.BigEndian.PutUint32(b[offset:], uint32(v))
		offset += 4
	}
	putAddr := func(addr net.HardwareAddr) {
		if addr == nil {
			b[offset] = 0
			offset++
			return
		}
		b[offset] = 1
		offset++
		copy(b[offset:], addr)
		offset += macLen
	}

	putInt32(p.policyID)
	putInt32(p.dscp)
	putInt32(int32(p.userPriority))
	putAddr(p.srcAddr)
	putAddr(p.dstAddr)
	putInt32(p.srcPort)
	putInt32(int32(p.protocol))
	if p.dstPortRange == nil {
		b[offset] = 0
		offset++
	} else {
		b[offset] = 2
		offset++
		putInt32(p.dstPortRange.Start)
		putInt32(p.dstPortRange.End)
	}
	putInt32(int32(p.direction))
	return offset, nil
}

// DecodeFromBytes decodes a policy from data, overwriting all fields of p.
// The translated policy ID always decodes to 0. Decoding does not validate:
// the payload may come from an untrusted peer, and the receiving system must
// call Validate before acting on the result. Trailing bytes after the
// encoded policy are ignored.
func (p *Policy) DecodeFromBytes(data []byte) error {
	offset := 0
	getInt32 := func(field string) (int32, error) {
		if len(data) < offset+4 {
			return 0, fmt.Errorf("%w: truncated at %s", ErrMalformedPolicy, field)
		}
		v := int32(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		return v, nil
	}
	getAddr := func(field string) (net.HardwareAddr, error) {
		if len(data) < offset+1 {
			return nil, fmt.Errorf("%w: truncated at %s", ErrMalformedPolicy, field)
		}
		flag := data[offset]
		offset++
		switch flag {
		case 0:
			return nil, nil
		case 1:
			if len(data) < offset+macLen {
				return nil, fmt.Errorf("%w: truncated at %s", ErrMalformedPolicy, field)
			}
			addr := append(net.HardwareAddr(nil), data[offset:offset+macLen]...)
			offset += macLen
			return addr, nil
		default:
			return nil, fmt.Errorf("%w: bad %s presence flag %d", ErrMalformedPolicy, field, flag)
		}
	}

	var decoded Policy
	var err error
	if decoded.policyID, err = getInt32("policyId"); err != nil {
		return err
	}
	if decoded.dscp, err = getInt32("dscp"); err != nil {
		return err
	}
	up, err := getInt32("userPriority")
	if err != nil {
		return err
	}
	decoded.userPriority = UserPriority(up)
	if decoded.srcAddr, err = getAddr("srcAddr"); err != nil {
		return err
	}
	if decoded.dstAddr, err = getAddr("dstAddr"); err != nil {
		return err
	}
	if decoded.srcPort, err = getInt32("srcPort"); err != nil {
		return err
	}
	proto, err := getInt32("protocol")
	if err != nil {
		return err
	}
	decoded.protocol = Protocol(proto)

	if len(data) < offset+1 {
		return fmt.Errorf("%w: truncated at dstPortRange", ErrMalformedPolicy)
	}
	rangeLen := data[offset]
	offset++
	switch rangeLen {
	case 0:
	case 2:
		var r PortRange
		if r.Start, err = getInt32("dstPortRange"); err != nil {
			return err
		}
		if r.End, err = getInt32("dstPortRange"); err != nil {
			return err
		}
		decoded.dstPortRange = &r
	default:
		return fmt.Errorf("%w: bad dstPortRange length %d", ErrMalformedPolicy, rangeLen)
	}

	dir, err := getInt32("direction")
	if err != nil {
		return err
	}
	decoded.direction = Direction(dir)

	*p = decoded
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Policy) MarshalBinary() ([]byte, error) {
	b := make([]byte, p.SerializedLen())
	if _, err := p.SerializeTo(b); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Unlike
// DecodeFromBytes it rejects trailing bytes.
func (p *Policy) UnmarshalBinary(data []byte) error {
	var decoded Policy
	if err := decoded.DecodeFromBytes(data); err != nil {
		return err
	}
	if len(data) != decoded.SerializedLen() {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedPolicy,
			len(data)-decoded.SerializedLen())
	}
	*p = decoded
	return nil
}
