// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package testutil provides utilities for testing the QoS policy agent
// without a loaded eBPF program: an in-memory stand-in for the policy
// array map and fixture helpers for building valid policies.
package testutil

import (
	"fmt"
	"sync"
)

// PolicyMap is an in-memory replacement for the eBPF policy array map.
// It records every slot written so tests can assert on install and clear
// operations without kernel support.
type PolicyMap struct {
	mu      sync.Mutex
	entries map[uint32][]byte
	puts    int

	// FailPuts makes every Put return an error, simulating a full or
	// unwritable map.
	FailPuts bool
}

// NewPolicyMap creates an empty in-memory policy map.
func NewPolicyMap() *PolicyMap {
	return &PolicyMap{entries: make(map[uint32][]byte)}
}

// Put records a write to the given slot. Keys must be *uint32, matching
// how the policy manager addresses the array map.
func (m *PolicyMap) Put(key, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPuts {
		return fmt.Errorf("simulated map write failure")
	}

	k, ok := key.(*uint32)
	if !ok {
		return fmt.Errorf("unexpected key type %T", key)
	}
	m.entries[*k] = nil
	m.puts++
	return nil
}

// Lookup reports whether the slot has been written.
func (m *PolicyMap) Lookup(key, valueOut interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := key.(*uint32)
	if !ok {
		return fmt.Errorf("unexpected key type %T", key)
	}
	if _, found := m.entries[*k]; !found {
		return fmt.Errorf("slot %d not written", *k)
	}
	return nil
}

// Puts returns the number of successful writes.
func (m *PolicyMap) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// WrittenSlots returns the set of slots that have been written at least
// once, including slots later cleared.
func (m *PolicyMap) WrittenSlots() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	slots := make([]uint32, 0, len(m.entries))
	for k := range m.entries {
		slots = append(slots, k)
	}
	return slots
}
