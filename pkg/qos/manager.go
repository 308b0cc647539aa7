// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrPolicyExists is returned by Add when the requester-assigned ID is
// already in use.
var ErrPolicyExists = errors.New("policy already exists")

// ErrPolicyNotFound is returned by Remove for unknown policy IDs.
var ErrPolicyNotFound = errors.New("policy not found")

// Map is the subset of the eBPF map API the manager needs. *ebpf.Map
// implements it.
type Map interface {
	Put(key, value interface{}) error
	Lookup(key, valueOut interface{}) error
}

// Flag bits marking which optional classifier fields of a policyEntry are
// set. The eBPF classifier skips unset fields when matching.
const (
	entryHasSrcAddr   = 1 << 0
	entryHasDstAddr   = 1 << 1
	entryHasSrcPort   = 1 << 2
	entryHasPortRange = 1 << 3
	entryHasProtocol  = 1 << 4
	entryHasDSCP      = 1 << 5
	entryHasPriority  = 1 << 6
)

// policyEntry is the fixed-layout map value shared with the eBPF classifier.
// Ports are stored in network byte order. Layout must stay in sync with
// struct qos_policy_entry in the BPF program.
type policyEntry struct {
	SrcAddr      [6]byte
	DstAddr      [6]byte
	SrcPort      uint16
	DstPortStart uint16
	DstPortEnd   uint16
	PolicyID     uint16
	Protocol     uint8
	Direction    uint8
	Dscp         uint8
	UserPriority uint8
	Flags        uint8
	Valid        uint8
	Pad          [2]uint8
}

// PolicyManager is the receiving system for QoS policies: it validates
// submitted policies, assigns translated IDs, installs the result into the
// dataplane policy map, and optionally persists accepted policies.
//
// All methods are safe for concurrent use; the manager's lock is also what
// serializes the translated-ID write on accepted policies.
type PolicyManager struct {
	mu        sync.RWMutex
	policyMap Map
	storage   Storage
	byID      map[int32]*Policy
	slots     [MaxPolicyID + 1]int32 // translated ID -> policy ID, 0 = free
}

// NewManager creates a policy manager without persistence.
func NewManager(policyMap Map) *PolicyManager {
	return &PolicyManager{
		policyMap: policyMap,
		byID:      make(map[int32]*Policy),
	}
}

// NewManagerWithStorage creates a policy manager that persists accepted
// policies.
func NewManagerWithStorage(policyMap Map, storage Storage) *PolicyManager {
	pm := NewManager(policyMap)
	pm.storage = storage
	return pm
}

// Add validates p, assigns it a translated policy ID, and installs it into
// the dataplane. A policy whose ID is already in use is rejected; to update
// an existing policy, remove it first.
func (pm *PolicyManager) Add(p *Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.byID[p.policyID]; ok {
		return fmt.Errorf("policy %d: %w", p.policyID, ErrPolicyExists)
	}

	slot, err := pm.allocateSlot(p.policyID)
	if err != nil {
		return err
	}

	if err := pm.install(p, slot); err != nil {
		pm.slots[slot] = 0
		return err
	}

	p.SetTranslatedPolicyID(int(slot))
	pm.byID[p.policyID] = p

	if pm.storage != nil {
		if err := pm.storage.SavePolicy(p); err != nil {
			log.Warnf("Failed to persist policy policy_id=%d: %v", p.PolicyID(), err)
			// The dataplane map is the source of truth; keep going.
		}
	}

	log.Infof("Policy accepted: policy_id=%d translated_id=%d direction=%s dscp=%d up=%d",
		p.PolicyID(), slot, DirectionString(p.Direction()), p.DSCP(), p.UserPriority())
	return nil
}

// Remove uninstalls the policy with the given requester-assigned ID.
func (pm *PolicyManager) Remove(policyID int) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.byID[int32(policyID)]
	if !ok {
		return fmt.Errorf("policy %d: %w", policyID, ErrPolicyNotFound)
	}

	slot := uint32(p.TranslatedPolicyID())
	// Array map slots cannot be deleted, clearing the entry frees them.
	if err := pm.policyMap.Put(&slot, &policyEntry{}); err != nil {
		return fmt.Errorf("failed to clear policy slot %d: %w", slot, err)
	}

	delete(pm.byID, int32(policyID))
	pm.slots[slot] = 0

	if pm.storage != nil {
		if err := pm.storage.DeletePolicy(policyID); err != nil {
			log.Warnf("Failed to delete policy from storage policy_id=%d: %v", policyID, err)
		}
	}

	log.Infof("Policy removed: policy_id=%d translated_id=%d", policyID, slot)
	return nil
}

// Get returns the accepted policy with the given requester-assigned ID.
func (pm *PolicyManager) Get(policyID int) (*Policy, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.byID[int32(policyID)]
	return p, ok
}

// List returns all accepted policies ordered by policy ID.
func (pm *PolicyManager) List() []*Policy {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	policies := make([]*Policy, 0, len(pm.byID))
	for _, p := range pm.byID {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].policyID < policies[j].policyID
	})
	return policies
}

// Count returns the number of accepted policies.
func (pm *PolicyManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.byID)
}

// LoadPersisted restores policies from storage and reinstalls them into the
// dataplane, keeping their previously assigned translated IDs.
func (pm *PolicyManager) LoadPersisted() error {
	if pm.storage == nil {
		return fmt.Errorf("no storage configured")
	}

	policies, err := pm.storage.LoadPolicies()
	if err != nil {
		return fmt.Errorf("failed to load policies from storage: %w", err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	restored := 0
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			log.Warnf("Skipping invalid stored policy policy_id=%d: %v", p.PolicyID(), err)
			continue
		}
		slot := int32(p.TranslatedPolicyID())
		if slot < MinPolicyID || slot > MaxPolicyID || pm.slots[slot] != 0 {
			var err error
			if slot, err = pm.allocateSlot(p.policyID); err != nil {
				log.Warnf("Failed to restore policy policy_id=%d: %v", p.PolicyID(), err)
				continue
			}
			p.SetTranslatedPolicyID(int(slot))
		} else {
			pm.slots[slot] = p.policyID
		}
		if err := pm.install(p, slot); err != nil {
			log.Warnf("Failed to restore policy policy_id=%d: %v", p.PolicyID(), err)
			pm.slots[slot] = 0
			continue
		}
		pm.byID[p.policyID] = p
		restored++
	}

	log.Infof("Restored %d/%d policies from storage", restored, len(policies))
	return nil
}

// allocateSlot finds the lowest free translated ID and reserves it for
// policyID. Caller must hold pm.mu.
func (pm *PolicyManager) allocateSlot(policyID int32) (int32, error) {
	for slot := int32(MinPolicyID); slot <= MaxPolicyID; slot++ {
		if pm.slots[slot] == 0 {
			pm.slots[slot] = policyID
			return slot, nil
		}
	}
	return 0, fmt.Errorf("policy table is full (max %d entries)", MaxPolicyID)
}

// install writes the dataplane map entry for p at the given slot. Caller
// must hold pm.mu.
func (pm *PolicyManager) install(p *Policy, slot int32) error {
	key := uint32(slot)
	entry := entryFromPolicy(p)
	if err := pm.policyMap.Put(&key, entry); err != nil {
		return fmt.Errorf("failed to install policy in slot %d: %w", slot, err)
	}
	return nil
}

// entryFromPolicy converts a validated policy into its dataplane map
// representation.
func entryFromPolicy(p *Policy) *policyEntry {
	e := &policyEntry{
		PolicyID:  uint16(p.policyID),
		Direction: uint8(p.direction),
		Valid:     1,
	}
	if p.srcAddr != nil {
		copy(e.SrcAddr[:], p.srcAddr)
		e.Flags |= entryHasSrcAddr
	}
	if p.dstAddr != nil {
		copy(e.DstAddr[:], p.dstAddr)
		e.Flags |= entryHasDstAddr
	}
	if p.srcPort != SourcePortAny {
		e.SrcPort = htons(uint16(p.srcPort))
		e.Flags |= entryHasSrcPort
	}
	if p.dstPortRange != nil {
		e.DstPortStart = htons(uint16(p.dstPortRange.Start))
		e.DstPortEnd = htons(uint16(p.dstPortRange.End))
		e.Flags |= entryHasPortRange
	}
	if p.protocol != ProtocolAny {
		e.Protocol = uint8(p.protocol)
		e.Flags |= entryHasProtocol
	}
	if p.dscp != DSCPAny {
		e.Dscp = uint8(p.dscp)
		e.Flags |= entryHasDSCP
	}
	if p.userPriority != UserPriorityAny {
		e.UserPriority = uint8(p.userPriority)
		e.Flags |= entryHasPriority
	}
	return e
}

func htons(v uint16) uint16 {
	return (v<<8)&0xff00 | v>>8
}
