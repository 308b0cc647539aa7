// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package testutil

import (
	"net"
	"testing"

	"github.com/qos-policy-agent/agent/pkg/qos"
	"github.com/stretchr/testify/require"
)

// UplinkPolicy builds a minimal valid uplink policy with the given ID.
func UplinkPolicy(t *testing.T, policyID, dscp int) *qos.Policy {
	t.Helper()
	p, err := qos.NewBuilder(policyID, qos.DirectionUplink).
		SetDSCP(dscp).
		Build()
	require.NoError(t, err)
	return p
}

// DownlinkPolicy builds a minimal valid downlink policy with the given ID.
func DownlinkPolicy(t *testing.T, policyID int, up qos.UserPriority) *qos.Policy {
	t.Helper()
	p, err := qos.NewBuilder(policyID, qos.DirectionDownlink).
		SetUserPriority(up).
		Build()
	require.NoError(t, err)
	return p
}

// FullPolicy builds an uplink policy with every optional classifier field
// populated, for codec and persistence round-trip tests.
func FullPolicy(t *testing.T, policyID int) *qos.Policy {
	t.Helper()
	p, err := qos.NewBuilder(policyID, qos.DirectionUplink).
		SetDSCP(46).
		SetUserPriority(qos.UserPriorityVoiceHigh).
		SetSourceAddress(net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}).
		SetDestinationAddress(net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}).
		SetSourcePort(5004).
		SetProtocol(qos.ProtocolUDP).
		SetDestinationPortRange(5004, 5008).
		Build()
	require.NoError(t, err)
	return p
}
