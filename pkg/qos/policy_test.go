// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	addr, err := net.ParseMAC(s)
	require.NoError(t, err)
	return addr
}

// TestBuildUplinkMinimal tests the smallest valid uplink policy
func TestBuildUplinkMinimal(t *testing.T) {
	p, err := NewBuilder(5, DirectionUplink).SetDSCP(10).Build()
	require.NoError(t, err)

	assert.Equal(t, 5, p.PolicyID())
	assert.Equal(t, 10, p.DSCP())
	assert.Equal(t, UserPriorityAny, p.UserPriority())
	assert.Equal(t, DirectionUplink, p.Direction())
	assert.Equal(t, SourcePortAny, p.SourcePort())
	assert.Equal(t, ProtocolAny, p.Protocol())
	assert.Nil(t, p.SourceAddress())
	assert.Nil(t, p.DestinationAddress())
	assert.Nil(t, p.DestinationPortRange())
	assert.Equal(t, 0, p.TranslatedPolicyID())
}

// TestValidatePolicyID tests the policy ID range boundaries
func TestValidatePolicyID(t *testing.T) {
	testCases := []struct {
		policyID    int
		expectError bool
	}{
		{policyID: 0, expectError: true},
		{policyID: -1, expectError: true},
		{policyID: 1, expectError: false},
		{policyID: 128, expectError: false},
		{policyID: 255, expectError: false},
		{policyID: 256, expectError: true},
		{policyID: 300, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("policy_id_%d", tc.policyID), func(t *testing.T) {
			_, err := NewBuilder(tc.policyID, DirectionUplink).SetDSCP(1).Build()
			if tc.expectError {
				assert.Error(t, err)
				assert.IsType(t, &ValidationError{}, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateDSCPRange tests DSCP boundaries for uplink policies
func TestValidateDSCPRange(t *testing.T) {
	testCases := []struct {
		dscp        int
		expectError bool
	}{
		{dscp: -2, expectError: true},
		{dscp: -1, expectError: true}, // unset, but required for uplink
		{dscp: 0, expectError: false},
		{dscp: 63, expectError: false},
		{dscp: 64, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("dscp_%d", tc.dscp), func(t *testing.T) {
			_, err := NewBuilder(5, DirectionUplink).SetDSCP(tc.dscp).Build()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateUserPriorityRange tests user priority boundaries for downlink
func TestValidateUserPriorityRange(t *testing.T) {
	testCases := []struct {
		up          UserPriority
		expectError bool
	}{
		{up: -2, expectError: true},
		{up: UserPriorityAny, expectError: true}, // unset, but required for downlink
		{up: UserPriorityBestEffortLow, expectError: false},
		{up: UserPriorityVoiceHigh, expectError: false},
		{up: 8, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("up_%d", tc.up), func(t *testing.T) {
			_, err := NewBuilder(5, DirectionDownlink).SetUserPriority(tc.up).Build()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateDirectionRequirements tests the direction-specific rules
func TestValidateDirectionRequirements(t *testing.T) {
	// Uplink without DSCP always fails.
	_, err := NewBuilder(5, DirectionUplink).Build()
	assert.Error(t, err)

	// Downlink without user priority always fails, even with a DSCP.
	_, err = NewBuilder(5, DirectionDownlink).SetDSCP(10).Build()
	assert.Error(t, err)

	// Downlink with user priority succeeds.
	_, err = NewBuilder(5, DirectionDownlink).SetUserPriority(UserPriorityVideoLow).Build()
	assert.NoError(t, err)

	// An out-of-range direction is rejected.
	_, err = NewBuilder(5, Direction(2)).SetDSCP(10).Build()
	assert.Error(t, err)
}

// TestValidateSourcePort tests source port boundaries
func TestValidateSourcePort(t *testing.T) {
	testCases := []struct {
		srcPort     int
		expectError bool
	}{
		{srcPort: -2, expectError: true},
		{srcPort: SourcePortAny, expectError: false},
		{srcPort: 0, expectError: false},
		{srcPort: 65535, expectError: false},
		{srcPort: 65536, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("src_port_%d", tc.srcPort), func(t *testing.T) {
			_, err := NewBuilder(5, DirectionUplink).SetDSCP(1).SetSourcePort(tc.srcPort).Build()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateDestinationPortRange tests port range boundaries
func TestValidateDestinationPortRange(t *testing.T) {
	testCases := []struct {
		name        string
		start, end  int
		expectError bool
	}{
		{name: "valid range", start: 80, end: 443, expectError: false},
		{name: "single port", start: 53, end: 53, expectError: false},
		{name: "full range", start: 0, end: 65535, expectError: false},
		// Ordering is deliberately not enforced.
		{name: "reversed range", start: 443, end: 80, expectError: false},
		{name: "negative start", start: -1, end: 80, expectError: true},
		{name: "end too large", start: 80, end: 65536, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBuilder(5, DirectionUplink).
				SetDSCP(1).
				SetDestinationPortRange(tc.start, tc.end).
				Build()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateCollectsAllViolations tests that every broken rule is reported
func TestValidateCollectsAllViolations(t *testing.T) {
	_, err := NewBuilder(300, DirectionUplink).
		SetSourcePort(70000).
		SetDestinationPortRange(-1, 99999).
		Build()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// policyId, srcPort, dstPortRange, and the missing uplink DSCP.
	assert.Len(t, verr.Violations, 4)

	fields := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		fields[i] = v.Field
	}
	assert.Contains(t, fields, "policyId")
	assert.Contains(t, fields, "srcPort")
	assert.Contains(t, fields, "dstPortRange")
	assert.Contains(t, fields, "dscp")
}

// TestPolicyEqual tests field-wise equality
func TestPolicyEqual(t *testing.T) {
	build := func(t *testing.T, mutate func(*Builder)) *Policy {
		t.Helper()
		b := NewBuilder(5, DirectionUplink).
			SetDSCP(10).
			SetProtocol(ProtocolTCP).
			SetSourcePort(1234).
			SetSourceAddress(mustMAC(t, "aa:bb:cc:dd:ee:ff")).
			SetDestinationPortRange(80, 443)
		if mutate != nil {
			mutate(b)
		}
		p, err := b.Build()
		require.NoError(t, err)
		return p
	}

	base := build(t, nil)

	// Reflexive and symmetric.
	assert.True(t, base.Equal(base))
	other := build(t, nil)
	assert.True(t, base.Equal(other))
	assert.True(t, other.Equal(base))

	// Changing any single field breaks equality.
	assert.False(t, base.Equal(build(t, func(b *Builder) { b.SetDSCP(11) })))
	assert.False(t, base.Equal(build(t, func(b *Builder) { b.SetProtocol(ProtocolUDP) })))
	assert.False(t, base.Equal(build(t, func(b *Builder) { b.SetSourcePort(1235) })))
	assert.False(t, base.Equal(build(t, func(b *Builder) {
		b.SetSourceAddress(mustMAC(t, "aa:bb:cc:dd:ee:fe"))
	})))
	assert.False(t, base.Equal(build(t, func(b *Builder) { b.SetDestinationPortRange(80, 444) })))

	// Different requester ID is a different policy.
	pid6, err := NewBuilder(6, DirectionUplink).
		SetDSCP(10).
		SetProtocol(ProtocolTCP).
		SetSourcePort(1234).
		SetSourceAddress(mustMAC(t, "aa:bb:cc:dd:ee:ff")).
		SetDestinationPortRange(80, 443).
		Build()
	require.NoError(t, err)
	assert.False(t, base.Equal(pid6))
}

// TestPolicyEqualAbsentFields tests nil-safety of optional field comparison
func TestPolicyEqualAbsentFields(t *testing.T) {
	bare := func(t *testing.T) *Policy {
		t.Helper()
		p, err := NewBuilder(5, DirectionUplink).SetDSCP(10).Build()
		require.NoError(t, err)
		return p
	}

	// Both absent: equal, and no dereference of the missing values.
	a, b := bare(t), bare(t)
	assert.True(t, a.Equal(b))

	// One absent, one present: never equal, in either order.
	withAddr, err := NewBuilder(5, DirectionUplink).
		SetDSCP(10).
		SetSourceAddress(mustMAC(t, "aa:bb:cc:dd:ee:ff")).
		Build()
	require.NoError(t, err)
	assert.False(t, a.Equal(withAddr))
	assert.False(t, withAddr.Equal(a))

	withRange, err := NewBuilder(5, DirectionUplink).
		SetDSCP(10).
		SetDestinationPortRange(80, 443).
		Build()
	require.NoError(t, err)
	assert.False(t, a.Equal(withRange))
	assert.False(t, withRange.Equal(a))

	// Nil receivers and arguments.
	var nilPolicy *Policy
	assert.True(t, nilPolicy.Equal(nil))
	assert.False(t, a.Equal(nil))
	assert.False(t, nilPolicy.Equal(a))
}

// TestPolicyEqualIgnoresTranslatedID tests that receiver-local state is
// excluded from identity
func TestPolicyEqualIgnoresTranslatedID(t *testing.T) {
	a, err := NewBuilder(5, DirectionUplink).SetDSCP(10).Build()
	require.NoError(t, err)
	b, err := NewBuilder(5, DirectionUplink).SetDSCP(10).Build()
	require.NoError(t, err)

	a.SetTranslatedPolicyID(42)
	assert.Equal(t, 42, a.TranslatedPolicyID())
	assert.True(t, a.Equal(b))
}

// TestPolicyString tests the debug representation
func TestPolicyString(t *testing.T) {
	p, err := NewBuilder(5, DirectionDownlink).
		SetUserPriority(UserPriorityVoiceLow).
		SetDestinationAddress(mustMAC(t, "aa:bb:cc:dd:ee:ff")).
		SetDestinationPortRange(80, 443).
		Build()
	require.NoError(t, err)

	s := p.String()
	assert.Equal(t, "{policyId=5, dscp=-1, userPriority=6, srcAddr=<nil>, "+
		"dstAddr=aa:bb:cc:dd:ee:ff, srcPort=-1, protocol=-1, dstPortRange=[80, 443], "+
		"direction=1}", s)
}

// TestDestinationPortRangeIsACopy tests that the accessor does not expose
// internal state
func TestDestinationPortRangeIsACopy(t *testing.T) {
	p, err := NewBuilder(5, DirectionUplink).
		SetDSCP(10).
		SetDestinationPortRange(80, 443).
		Build()
	require.NoError(t, err)

	r := p.DestinationPortRange()
	r.Start = 9999
	assert.Equal(t, int32(80), p.DestinationPortRange().Start)
}

// TestParseProtocol tests protocol name parsing
func TestParseProtocol(t *testing.T) {
	testCases := []struct {
		input       string
		expected    Protocol
		expectError bool
	}{
		{input: "tcp", expected: ProtocolTCP},
		{input: "udp", expected: ProtocolUDP},
		{input: "esp", expected: ProtocolESP},
		{input: "any", expected: ProtocolAny},
		{input: "", expected: ProtocolAny},
		{input: "icmp", expectError: true},
		{input: "TCP", expectError: true},
	}

	for _, tc := range testCases {
		t.Run("proto_"+tc.input, func(t *testing.T) {
			result, err := ParseProtocol(tc.input)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

// TestProtocolString tests protocol name formatting
func TestProtocolString(t *testing.T) {
	assert.Equal(t, "tcp", ProtocolString(ProtocolTCP))
	assert.Equal(t, "udp", ProtocolString(ProtocolUDP))
	assert.Equal(t, "esp", ProtocolString(ProtocolESP))
	assert.Equal(t, "any", ProtocolString(ProtocolAny))
	assert.Equal(t, "99", ProtocolString(Protocol(99)))
}

// TestParseDirection tests direction name parsing
func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("uplink")
	assert.NoError(t, err)
	assert.Equal(t, DirectionUplink, d)

	d, err = ParseDirection("downlink")
	assert.NoError(t, err)
	assert.Equal(t, DirectionDownlink, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)

	assert.Equal(t, "uplink", DirectionString(DirectionUplink))
	assert.Equal(t, "downlink", DirectionString(DirectionDownlink))
	assert.Equal(t, "7", DirectionString(Direction(7)))
}
