// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package qos

// Manager interface defines the operations for policy management.
// This interface is useful for testing and dependency injection.
type Manager interface {
	Add(p *Policy) error
	Remove(policyID int) error
	Get(policyID int) (*Policy, bool)
	List() []*Policy
	Count() int
}

// Ensure PolicyManager implements Manager interface
var _ Manager = (*PolicyManager)(nil)
