// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMap is an in-memory stand-in for the dataplane policy array map.
type fakeMap struct {
	entries map[uint32]policyEntry
	failPut bool
}

func newFakeMap() *fakeMap {
	return &fakeMap{entries: make(map[uint32]policyEntry)}
}

func (m *fakeMap) Put(key, value interface{}) error {
	if m.failPut {
		return fmt.Errorf("map full")
	}
	m.entries[*key.(*uint32)] = *value.(*policyEntry)
	return nil
}

func (m *fakeMap) Lookup(key, valueOut interface{}) error {
	e, ok := m.entries[*key.(*uint32)]
	if !ok {
		return fmt.Errorf("key not found")
	}
	*valueOut.(*policyEntry) = e
	return nil
}

func uplinkPolicy(t *testing.T, policyID int) *Policy {
	t.Helper()
	p, err := NewBuilder(policyID, DirectionUplink).SetDSCP(10).Build()
	require.NoError(t, err)
	return p
}

// TestManagerAddAssignsTranslatedIDs tests sequential slot assignment
func TestManagerAddAssignsTranslatedIDs(t *testing.T) {
	m := newFakeMap()
	pm := NewManager(m)

	for i := 1; i <= 3; i++ {
		p := uplinkPolicy(t, i*10)
		require.NoError(t, pm.Add(p))
		assert.Equal(t, i, p.TranslatedPolicyID())
	}
	assert.Equal(t, 3, pm.Count())
	assert.Len(t, m.entries, 3)

	e := m.entries[1]
	assert.Equal(t, uint16(10), e.PolicyID)
	assert.Equal(t, uint8(1), e.Valid)
}

// TestManagerAddRejectsInvalid tests that validation gates acceptance
func TestManagerAddRejectsInvalid(t *testing.T) {
	m := newFakeMap()
	pm := NewManager(m)

	p, err := NewBuilder(5, DirectionDownlink).
		SetUserPriority(UserPriorityVoiceLow).
		Build()
	require.NoError(t, err)
	// Corrupt is impossible through the builder; use an unvalidated value.
	bad := &Policy{policyID: 0, direction: DirectionUplink, dscp: 10,
		userPriority: UserPriorityAny, srcPort: SourcePortAny, protocol: ProtocolAny}

	assert.Error(t, pm.Add(bad))
	assert.NoError(t, pm.Add(p))
	assert.Empty(t, m.entries[0])
}

// TestManagerAddRejectsDuplicateID tests the existing-ID rule
func TestManagerAddRejectsDuplicateID(t *testing.T) {
	pm := NewManager(newFakeMap())

	require.NoError(t, pm.Add(uplinkPolicy(t, 5)))
	err := pm.Add(uplinkPolicy(t, 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, 1, pm.Count())
}

// TestManagerAddInstallFailureFreesSlot tests cleanup on dataplane errors
func TestManagerAddInstallFailureFreesSlot(t *testing.T) {
	m := newFakeMap()
	pm := NewManager(m)

	m.failPut = true
	p := uplinkPolicy(t, 5)
	require.Error(t, pm.Add(p))
	assert.Equal(t, 0, p.TranslatedPolicyID())

	m.failPut = false
	require.NoError(t, pm.Add(p))
	assert.Equal(t, 1, p.TranslatedPolicyID())
}

// TestManagerRemoveFreesSlot tests slot reuse after removal
func TestManagerRemoveFreesSlot(t *testing.T) {
	m := newFakeMap()
	pm := NewManager(m)

	first := uplinkPolicy(t, 5)
	second := uplinkPolicy(t, 6)
	require.NoError(t, pm.Add(first))
	require.NoError(t, pm.Add(second))

	require.NoError(t, pm.Remove(5))
	assert.Equal(t, 1, pm.Count())
	assert.Equal(t, uint8(0), m.entries[1].Valid)

	_, ok := pm.Get(5)
	assert.False(t, ok)

	// Slot 1 is free again, the next policy takes it.
	third := uplinkPolicy(t, 7)
	require.NoError(t, pm.Add(third))
	assert.Equal(t, 1, third.TranslatedPolicyID())
}

// TestManagerRemoveUnknown tests the not-found path
func TestManagerRemoveUnknown(t *testing.T) {
	pm := NewManager(newFakeMap())
	err := pm.Remove(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// TestManagerListOrdered tests List ordering by policy ID
func TestManagerListOrdered(t *testing.T) {
	pm := NewManager(newFakeMap())

	for _, id := range []int{9, 3, 7, 1} {
		require.NoError(t, pm.Add(uplinkPolicy(t, id)))
	}

	ids := []int{}
	for _, p := range pm.List() {
		ids = append(ids, p.PolicyID())
	}
	assert.Equal(t, []int{1, 3, 7, 9}, ids)
}

// TestManagerSlotExhaustion tests the table-full error
func TestManagerSlotExhaustion(t *testing.T) {
	pm := NewManager(newFakeMap())

	for id := MinPolicyID; id <= MaxPolicyID; id++ {
		require.NoError(t, pm.Add(uplinkPolicy(t, id)))
	}

	// All 255 IDs are taken, so a duplicate-free Add cannot exist; drop one
	// and refill to prove the slot scan still works at the boundary.
	require.NoError(t, pm.Remove(100))
	p := uplinkPolicy(t, 100)
	require.NoError(t, pm.Add(p))
	assert.Equal(t, 100, p.TranslatedPolicyID())
}

// TestEntryFromPolicy tests the dataplane map conversion
func TestEntryFromPolicy(t *testing.T) {
	p, err := NewBuilder(5, DirectionDownlink).
		SetDSCP(46).
		SetUserPriority(UserPriorityVoiceHigh).
		SetSourceAddress(mustMAC(t, "aa:bb:cc:dd:ee:ff")).
		SetSourcePort(5060).
		SetProtocol(ProtocolUDP).
		SetDestinationPortRange(16384, 32767).
		Build()
	require.NoError(t, err)

	e := entryFromPolicy(p)
	assert.Equal(t, uint16(5), e.PolicyID)
	assert.Equal(t, uint8(DirectionDownlink), e.Direction)
	assert.Equal(t, [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, e.SrcAddr)
	assert.Equal(t, [6]byte{}, e.DstAddr)
	assert.Equal(t, htons(5060), e.SrcPort)
	assert.Equal(t, htons(16384), e.DstPortStart)
	assert.Equal(t, htons(32767), e.DstPortEnd)
	assert.Equal(t, uint8(17), e.Protocol)
	assert.Equal(t, uint8(46), e.Dscp)
	assert.Equal(t, uint8(7), e.UserPriority)
	assert.Equal(t, uint8(1), e.Valid)

	expected := uint8(entryHasSrcAddr | entryHasSrcPort | entryHasPortRange |
		entryHasProtocol | entryHasDSCP | entryHasPriority)
	assert.Equal(t, expected, e.Flags)
}

// TestEntryFromPolicyUnsetFields tests that unset fields leave flags clear
func TestEntryFromPolicyUnsetFields(t *testing.T) {
	p := uplinkPolicy(t, 5)
	e := entryFromPolicy(p)

	assert.Equal(t, uint8(entryHasDSCP), e.Flags)
	assert.Equal(t, uint16(0), e.SrcPort)
	assert.Equal(t, uint8(0), e.Protocol)
	assert.Equal(t, uint8(0), e.UserPriority)
}

// TestHtons tests host to network short conversion
func TestHtons(t *testing.T) {
	testCases := []struct {
		input    uint16
		expected uint16
	}{
		{input: 80, expected: 0x5000},
		{input: 443, expected: 0xbb01},
		{input: 0, expected: 0},
		{input: 65535, expected: 0xffff},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("port_%d", tc.input), func(t *testing.T) {
			assert.Equal(t, tc.expected, htons(tc.input))
		})
	}
}

// TestManagerLoadPersisted tests restoring accepted policies from storage
func TestManagerLoadPersisted(t *testing.T) {
	dbPath := t.TempDir() + "/restore.db"
	storage, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer storage.Close()

	m := newFakeMap()
	pm := NewManagerWithStorage(m, storage)

	p, err := NewBuilder(5, DirectionUplink).
		SetDSCP(10).
		SetDestinationPortRange(80, 443).
		Build()
	require.NoError(t, err)
	require.NoError(t, pm.Add(p))
	translated := p.TranslatedPolicyID()

	// A fresh manager over the same storage sees the same policy with the
	// same translated ID.
	m2 := newFakeMap()
	pm2 := NewManagerWithStorage(m2, storage)
	require.NoError(t, pm2.LoadPersisted())

	restored, ok := pm2.Get(5)
	require.True(t, ok)
	assert.True(t, p.Equal(restored))
	assert.Equal(t, translated, restored.TranslatedPolicyID())
	assert.Equal(t, uint8(1), m2.entries[uint32(translated)].Valid)
}

// TestManagerLoadPersistedNoStorage tests the unconfigured-storage error
func TestManagerLoadPersistedNoStorage(t *testing.T) {
	pm := NewManager(newFakeMap())
	assert.Error(t, pm.LoadPersisted())
}
