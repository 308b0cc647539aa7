// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package dataplane provides an interface to the eBPF QoS marking engine
// that applies accepted policies to live traffic.
//
// The data plane manages:
//   - BPF object lifecycle (loading, attachment, cleanup)
//   - TC (Traffic Control) hook integration, TCX with legacy fallback
//   - The policy table shared with the kernel classifier
//   - Marking statistics and mark event delivery via ring buffer
//
// # Architecture
//
// The kernel side is a TC classifier compiled from tc_qos_marker.bpf.c.
// For each packet it scans the policy table for a matching entry and, on a
// hit, rewrites the IP DSCP field (uplink policies) or sets the skb
// priority (downlink policies). The userspace side owns the table: the
// policy manager writes one fixed-layout entry per accepted policy, indexed
// by the policy's translated ID.
//
// # Maps
//
//   - qos_policy_map: ARRAY of 256 policy entries, slot = translated ID
//   - qos_stats_map: PERCPU_ARRAY of marking counters
//   - mark_events: RINGBUF notifying userspace of first-match events
//
// # Example Usage
//
//	dp, err := dataplane.New("wlan0", "/usr/lib/qos/tc_qos_marker.bpf.o")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dp.Close()
//
//	go dp.MonitorMarkEvents()
//
//	stats := dp.GetStatistics()
//	fmt.Printf("Marked packets: %d\n", stats.MarkedPackets)
//
// # Thread Safety
//
// The DataPlane type is safe for concurrent use. Statistics queries and
// map operations can be called from multiple goroutines.
package dataplane
