// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"bytes"
	"fmt"
	"net"
)

// Direction selects which traffic flow a policy applies to, relative to
// the requesting device.
type Direction int32

const (
	// DirectionUplink matches packets transmitted by the device.
	DirectionUplink Direction = 0
	// DirectionDownlink matches packets received by the device.
	DirectionDownlink Direction = 1
)

// Protocol is the IP protocol a policy matches. ProtocolAny matches every
// protocol.
type Protocol int32

const (
	ProtocolAny Protocol = -1
	ProtocolTCP Protocol = 6
	ProtocolUDP Protocol = 17
	ProtocolESP Protocol = 50
)

// UserPriority is one of the eight traffic priority levels applied to
// downlink policies. UserPriorityAny means no priority is specified.
type UserPriority int32

const (
	UserPriorityAny            UserPriority = -1
	UserPriorityBestEffortLow  UserPriority = 0
	UserPriorityBackgroundLow  UserPriority = 1
	UserPriorityBackgroundHigh UserPriority = 2
	UserPriorityBestEffortHigh UserPriority = 3
	UserPriorityVideoLow       UserPriority = 4
	UserPriorityVideoHigh      UserPriority = 5
	UserPriorityVoiceLow       UserPriority = 6
	UserPriorityVoiceHigh      UserPriority = 7
)

const (
	// DSCPAny indicates that the policy does not specify a DSCP value.
	DSCPAny = -1
	// SourcePortAny indicates that the policy matches any source port.
	SourcePortAny = -1

	// MinPolicyID and MaxPolicyID bound the requester-assigned policy ID.
	MinPolicyID = 1
	MaxPolicyID = 255

	// MaxDSCP is the largest valid DSCP code point (6-bit field).
	MaxDSCP = 63
	// MaxPort is the largest valid TCP/UDP port.
	MaxPort = 65535
)

// PortRange is an inclusive destination port range.
type PortRange struct {
	Start int32
	End   int32
}

// Policy describes a single QoS traffic classification rule: which packets
// to match (addresses, ports, protocol, direction) and how to treat them
// (DSCP marking on uplink, user priority on downlink).
//
// A Policy is immutable once built, with one exception: the translated
// policy ID is assigned by the receiving system after the policy has been
// accepted. That field is written exactly once and is not synchronized
// internally; holders sharing a Policy across goroutines must coordinate
// access to it themselves. All other fields are safe to share without
// synchronization.
type Policy struct {
	policyID           int32
	translatedPolicyID int32
	dscp               int32
	userPriority       UserPriority
	srcAddr            net.HardwareAddr
	dstAddr            net.HardwareAddr
	srcPort            int32
	protocol           Protocol
	dstPortRange       *PortRange
	direction          Direction
}

// PolicyID returns the requester-assigned policy ID.
func (p *Policy) PolicyID() int {
	return int(p.policyID)
}

// TranslatedPolicyID returns the ID assigned by the receiving system, or 0
// if the policy has not been accepted yet.
func (p *Policy) TranslatedPolicyID() int {
	return int(p.translatedPolicyID)
}

// SetTranslatedPolicyID records the ID assigned by the receiving system.
// It must only be called by the system that accepted the policy, and
// requires external synchronization if the Policy is shared.
func (p *Policy) SetTranslatedPolicyID(id int) {
	p.translatedPolicyID = int32(id)
}

// DSCP returns the DSCP value, or DSCPAny if not assigned.
func (p *Policy) DSCP() int {
	return int(p.dscp)
}

// UserPriority returns the user priority, or UserPriorityAny if not assigned.
func (p *Policy) UserPriority() UserPriority {
	return p.userPriority
}

// SourceAddress returns the source MAC address, or nil if not assigned.
func (p *Policy) SourceAddress() net.HardwareAddr {
	return p.srcAddr
}

// DestinationAddress returns the destination MAC address, or nil if not
// assigned.
func (p *Policy) DestinationAddress() net.HardwareAddr {
	return p.dstAddr
}

// SourcePort returns the source port, or SourcePortAny if not assigned.
func (p *Policy) SourcePort() int {
	return int(p.srcPort)
}

// Protocol returns the IP protocol, or ProtocolAny if not assigned.
func (p *Policy) Protocol() Protocol {
	return p.protocol
}

// DestinationPortRange returns a copy of the inclusive destination port
// range, or nil if not assigned.
func (p *Policy) DestinationPortRange() *PortRange {
	if p.dstPortRange == nil {
		return nil
	}
	r := *p.dstPortRange
	return &r
}

// Direction returns the traffic direction this policy applies to.
func (p *Policy) Direction() Direction {
	return p.direction
}

// Validate checks every field against its allowed range, including the
// direction-specific requirements (uplink policies need a DSCP value,
// downlink policies need a user priority). It returns a *ValidationError
// listing all violated rules, or nil if the policy is valid.
func (p *Policy) Validate() error {
	var verr ValidationError

	if p.policyID < MinPolicyID || p.policyID > MaxPolicyID {
		verr.add("policyId", int(p.policyID), "must be in range 1..255")
	}
	if p.dscp < DSCPAny || p.dscp > MaxDSCP {
		verr.add("dscp", int(p.dscp), "must be -1 or in range 0..63")
	}
	if p.userPriority < UserPriorityAny || p.userPriority > UserPriorityVoiceHigh {
		verr.add("userPriority", int(p.userPriority), "must be -1 or in range 0..7")
	}
	if p.srcPort < SourcePortAny || p.srcPort > MaxPort {
		verr.add("srcPort", int(p.srcPort), "must be -1 or in range 0..65535")
	}
	if r := p.dstPortRange; r != nil {
		if r.Start < 0 || r.Start > MaxPort || r.End < 0 || r.End > MaxPort {
			verr.add("dstPortRange", fmt.Sprintf("[%d, %d]", r.Start, r.End),
				"both ports must be in range 0..65535")
		}
	}
	if p.direction != DirectionUplink && p.direction != DirectionDownlink {
		verr.add("direction", int(p.direction), "must be uplink (0) or downlink (1)")
	}

	// DSCP and user priority are required depending on direction.
	if p.direction == DirectionUplink && p.dscp == DSCPAny {
		verr.add("dscp", DSCPAny, "must be provided for uplink policies")
	}
	if p.direction == DirectionDownlink && p.userPriority == UserPriorityAny {
		verr.add("userPriority", int(UserPriorityAny), "must be provided for downlink policies")
	}

	if len(verr.Violations) > 0 {
		return &verr
	}
	return nil
}

// Equal reports whether p and o carry the same classification parameters.
// The translated policy ID is excluded: it is receiver-local state, not part
// of the policy's identity. Absent addresses and port ranges compare equal
// only to other absent values.
func (p *Policy) Equal(o *Policy) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil {
		return false
	}
	if p.dstPortRange != nil && o.dstPortRange != nil {
		if *p.dstPortRange != *o.dstPortRange {
			return false
		}
	} else if p.dstPortRange != nil || o.dstPortRange != nil {
		// One present, one absent.
		return false
	}
	return p.policyID == o.policyID &&
		p.dscp == o.dscp &&
		p.userPriority == o.userPriority &&
		bytes.Equal(p.srcAddr, o.srcAddr) &&
		bytes.Equal(p.dstAddr, o.dstAddr) &&
		p.srcPort == o.srcPort &&
		p.protocol == o.protocol &&
		p.direction == o.direction
}

// String returns a human-readable dump of every field in declaration order.
// It is meant for logs and debugging, not for parsing.
func (p *Policy) String() string {
	srcAddr, dstAddr := "<nil>", "<nil>"
	if p.srcAddr != nil {
		srcAddr = p.srcAddr.String()
	}
	if p.dstAddr != nil {
		dstAddr = p.dstAddr.String()
	}
	dstPortRange := "<nil>"
	if p.dstPortRange != nil {
		dstPortRange = fmt.Sprintf("[%d, %d]", p.dstPortRange.Start, p.dstPortRange.End)
	}
	return fmt.Sprintf("{policyId=%d, dscp=%d, userPriority=%d, srcAddr=%s, dstAddr=%s, "+
		"srcPort=%d, protocol=%d, dstPortRange=%s, direction=%d}",
		p.policyID, p.dscp, p.userPriority, srcAddr, dstAddr,
		p.srcPort, p.protocol, dstPortRange, p.direction)
}

// DirectionString returns the name for a direction ("uplink", "downlink"),
// or its numeric value for unknown directions.
func DirectionString(d Direction) string {
	switch d {
	case DirectionUplink:
		return "uplink"
	case DirectionDownlink:
		return "downlink"
	default:
		return fmt.Sprintf("%d", int32(d))
	}
}

// ParseDirection converts a direction name to its Direction value.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "uplink":
		return DirectionUplink, nil
	case "downlink":
		return DirectionDownlink, nil
	default:
		return 0, fmt.Errorf("unknown direction: %s", s)
	}
}

// ProtocolString returns the name for a protocol ("tcp", "udp", "esp",
// "any"), or its numeric value for unknown protocols.
func ProtocolString(p Protocol) string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolESP:
		return "esp"
	case ProtocolAny:
		return "any"
	default:
		return fmt.Sprintf("%d", int32(p))
	}
}

// ParseProtocol converts a protocol name to its Protocol value.
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "tcp":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	case "esp":
		return ProtocolESP, nil
	case "any", "":
		return ProtocolAny, nil
	default:
		return 0, fmt.Errorf("unknown protocol: %s", s)
	}
}
