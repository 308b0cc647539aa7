// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"fmt"
	"net"
)

// Builder stages the fields of a Policy and produces validated, immutable
// snapshots. The two required fields (policy ID and direction) are fixed at
// construction; everything else defaults to unset and is staged by the
// chainable setters in any order. Setters overwrite earlier values.
//
// Build may be called any number of times; each successful call returns an
// independent Policy reflecting the builder's state at that moment.
type Builder struct {
	policyID     int32
	direction    Direction
	srcAddr      net.HardwareAddr
	dstAddr      net.HardwareAddr
	dscp         int32
	userPriority UserPriority
	srcPort      int32
	protocol     Protocol
	dstPortRange *PortRange

	// First setter argument error, surfaced by Build. Setters chain, so
	// they cannot return it directly.
	err error
}

// NewBuilder creates a Builder for a policy with the given requester-assigned
// ID and traffic direction. Neither value is validated here; Build runs the
// full validation.
func NewBuilder(policyID int, direction Direction) *Builder {
	return &Builder{
		policyID:     int32(policyID),
		direction:    direction,
		dscp:         DSCPAny,
		userPriority: UserPriorityAny,
		srcPort:      SourcePortAny,
		protocol:     ProtocolAny,
	}
}

// SetSourceAddress stages the source MAC address to match. The address must
// be present and 6 bytes long; omission is expressed by never calling the
// setter. A bad address is recorded and reported by Build.
func (b *Builder) SetSourceAddress(addr net.HardwareAddr) *Builder {
	if len(addr) != 6 {
		b.setErr(fmt.Errorf("source address %q: %w", addr, ErrInvalidAddress))
		return b
	}
	b.srcAddr = append(net.HardwareAddr(nil), addr...)
	return b
}

// SetDestinationAddress stages the destination MAC address to match, with
// the same requirements as SetSourceAddress.
func (b *Builder) SetDestinationAddress(addr net.HardwareAddr) *Builder {
	if len(addr) != 6 {
		b.setErr(fmt.Errorf("destination address %q: %w", addr, ErrInvalidAddress))
		return b
	}
	b.dstAddr = append(net.HardwareAddr(nil), addr...)
	return b
}

// SetDSCP stages the DSCP value. For uplink policies it is applied to
// matching packets; for downlink policies it is part of the classifier.
// Range checking is deferred to Build.
func (b *Builder) SetDSCP(value int) *Builder {
	b.dscp = int32(value)
	return b
}

// SetUserPriority stages the user priority applied to matching packets.
// Only meaningful for downlink policies.
func (b *Builder) SetUserPriority(value UserPriority) *Builder {
	b.userPriority = value
	return b
}

// SetSourcePort stages the source port to match.
func (b *Builder) SetSourcePort(value int) *Builder {
	b.srcPort = int32(value)
	return b
}

// SetProtocol stages the IP protocol to match.
func (b *Builder) SetProtocol(value Protocol) *Builder {
	b.protocol = value
	return b
}

// SetDestinationPortRange stages the inclusive destination port range to
// match.
func (b *Builder) SetDestinationPortRange(start, end int) *Builder {
	b.dstPortRange = &PortRange{Start: int32(start), End: int32(end)}
	return b
}

// Build constructs a Policy from the staged fields and validates it. It
// fails if a setter was given a bad argument or if any validation rule is
// violated. The builder remains usable after Build.
func (b *Builder) Build() (*Policy, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := &Policy{
		policyID:     b.policyID,
		dscp:         b.dscp,
		userPriority: b.userPriority,
		srcAddr:      b.srcAddr,
		dstAddr:      b.dstAddr,
		srcPort:      b.srcPort,
		protocol:     b.protocol,
		direction:    b.direction,
	}
	if b.dstPortRange != nil {
		r := *b.dstPortRange
		p.dstPortRange = &r
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
