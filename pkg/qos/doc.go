// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package qos models QoS traffic classification policies and manages their
// lifecycle from submission to installation in the dataplane.
//
// It handles:
//   - The immutable Policy value type and its guarded Builder
//   - Cross-field validation with per-rule diagnostics
//   - The canonical byte-stream encoding for transport between processes
//   - Translation between policies and dataplane map entries
//   - Translated-ID assignment and policy persistence
//
// # Policy Model
//
// A policy names the packets to treat specially:
//   - Source / destination MAC address (optional)
//   - Source port (-1 for any)
//   - Destination port range (optional, inclusive)
//   - IP protocol (tcp, udp, esp, any)
//   - Direction (uplink or downlink)
//
// and the treatment:
//   - Uplink: mark matching packets with a DSCP code point
//   - Downlink: assign matching packets a user priority level
//
// # Example Usage
//
//	p, err := qos.NewBuilder(5, qos.DirectionUplink).
//		SetDSCP(10).
//		SetProtocol(qos.ProtocolTCP).
//		SetDestinationPortRange(8000, 8080).
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pm := qos.NewManager(dp.GetQoSPolicyMap())
//	if err := pm.Add(p); err != nil {
//		log.Fatal(err)
//	}
//	// The manager has now assigned p.TranslatedPolicyID().
//
// # Wire Format
//
// Policies cross process boundaries through SerializeTo/DecodeFromBytes, a
// fixed-order big-endian encoding. Decoding never validates; callers must
// run Validate on decoded input before acting on it.
//
// # Thread Safety
//
// Policy values are immutable and safe to share, except the translated
// policy ID which is written once by the manager under its lock. Builders
// are not safe for concurrent use. The PolicyManager is safe for concurrent
// use.
package qos
