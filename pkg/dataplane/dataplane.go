// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package dataplane

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Names of the program and maps inside the compiled BPF object. They must
// match tc_qos_marker.bpf.c.
const (
	progName      = "tc_qos_marker"
	policyMapName = "qos_policy_map"
	statsMapName  = "qos_stats_map"
	eventsMapName = "mark_events"
)

// Stats map indices, one per-CPU counter each.
const (
	statTotalPackets = iota
	statMarkedPackets
	statPrioritizedPackets
	statPolicyHits
	statPolicyMisses
)

// DataPlane manages the eBPF QoS marking engine: a TC program that matches
// packets against the installed policy table and rewrites the DSCP field
// (uplink) or the skb priority (downlink).
type DataPlane struct {
	coll      *ebpf.Collection
	iface     string
	ifaceIdx  int
	tcLink    link.Link
	tcFilter  *netlink.BpfFilter // For legacy TC cleanup
	rbReader  *ringbuf.Reader
	useLegacy bool // Track if using legacy TC attachment
}

// Statistics holds packet marking statistics
type Statistics struct {
	TotalPackets       uint64
	MarkedPackets      uint64
	PrioritizedPackets uint64
	PolicyHits         uint64
	PolicyMisses       uint64
}

// New loads the compiled BPF object from objPath and attaches the marker
// program to the egress hook of iface. It tries TCX first (kernel >= 6.6)
// and falls back to a legacy netlink clsact filter.
func New(iface, objPath string) (*DataPlane, error) {
	ifaceObj, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s not found: %w", iface, err)
	}

	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		return nil, fmt.Errorf("loading BPF object %s: %w", objPath, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("creating BPF collection: %w", err)
	}

	prog := coll.Programs[progName]
	if prog == nil {
		coll.Close()
		return nil, fmt.Errorf("program %s not found in %s", progName, objPath)
	}
	for _, name := range []string{policyMapName, statsMapName, eventsMapName} {
		if coll.Maps[name] == nil {
			coll.Close()
			return nil, fmt.Errorf("map %s not found in %s", name, objPath)
		}
	}

	log.Debugf("BPF objects loaded from %s", objPath)

	dp := &DataPlane{
		coll:     coll,
		iface:    iface,
		ifaceIdx: ifaceObj.Index,
	}

	// Attach to egress: DSCP marking happens on transmit, downlink
	// priorities are looked up on the same pass for locally bridged flows.
	tcLink, err := link.AttachTCX(link.TCXOptions{
		Interface: ifaceObj.Index,
		Program:   prog,
		Attach:    ebpf.AttachTCXEgress,
	})
	if err != nil {
		// TCX not supported (kernel < 6.6), fallback to legacy netlink-based TC hook
		log.Warnf("TCX attach failed (requires kernel >= 6.6), falling back to legacy TC hook: %v", err)
		if err := dp.attachLegacy(prog); err != nil {
			coll.Close()
			return nil, err
		}
		dp.useLegacy = true
		log.Infof("TC program attached to %s egress (legacy netlink mode)", iface)
	} else {
		dp.tcLink = tcLink
		log.Infof("TC program attached to %s egress (TCX mode)", iface)
	}

	rbReader, err := ringbuf.NewReader(coll.Maps[eventsMapName])
	if err != nil {
		dp.detach()
		coll.Close()
		return nil, fmt.Errorf("creating ring buffer reader: %w", err)
	}
	dp.rbReader = rbReader

	return dp, nil
}

// attachLegacy attaches the program through a clsact qdisc and a netlink
// BPF filter, compatible with kernels older than 6.6.
func (dp *DataPlane) attachLegacy(prog *ebpf.Program) error {
	nlLink, err := netlink.LinkByIndex(dp.ifaceIdx)
	if err != nil {
		return fmt.Errorf("getting netlink interface: %w", err)
	}

	qdisc := &netlink.GenericQdisc{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: dp.ifaceIdx,
			Handle:    netlink.MakeHandle(0xffff, 0),
			Parent:    netlink.HANDLE_CLSACT,
		},
		QdiscType: "clsact",
	}
	if err := netlink.QdiscAdd(qdisc); err != nil {
		if !isFileExistsError(err) {
			return fmt.Errorf("adding clsact qdisc: %w", err)
		}
		log.Debugf("clsact qdisc already exists on %s", dp.iface)
	}

	// Drop stale filters from previous runs.
	existingFilters, err := netlink.FilterList(nlLink, netlink.HANDLE_MIN_EGRESS)
	if err == nil {
		for _, f := range existingFilters {
			if bpfFilter, ok := f.(*netlink.BpfFilter); ok && bpfFilter.Name == progName {
				netlink.FilterDel(bpfFilter)
				log.Debugf("Removed old BPF filter from %s", dp.iface)
			}
		}
	}

	filter := &netlink.BpfFilter{
		FilterAttrs: netlink.FilterAttrs{
			LinkIndex: dp.ifaceIdx,
			Parent:    netlink.HANDLE_MIN_EGRESS,
			Handle:    1,
			Protocol:  unix.ETH_P_ALL,
			Priority:  1,
		},
		Fd:           prog.FD(),
		Name:         progName,
		DirectAction: true,
	}
	if err := netlink.FilterAdd(filter); err != nil {
		return fmt.Errorf("attaching TC filter: %w", err)
	}
	dp.tcFilter = filter
	return nil
}

func (dp *DataPlane) detach() {
	if dp.useLegacy && dp.tcFilter != nil {
		if err := netlink.FilterDel(dp.tcFilter); err != nil {
			log.Warnf("Removing TC filter: %v", err)
		}
		dp.tcFilter = nil
	} else if dp.tcLink != nil {
		dp.tcLink.Close()
		dp.tcLink = nil
	}
}

// Close cleans up the data plane resources
func (dp *DataPlane) Close() error {
	var errs []error

	if dp.rbReader != nil {
		if err := dp.rbReader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing ring buffer reader: %w", err))
		}
	}

	if dp.useLegacy && dp.tcFilter != nil {
		if err := netlink.FilterDel(dp.tcFilter); err != nil {
			errs = append(errs, fmt.Errorf("removing TC filter: %w", err))
		} else {
			log.Debugf("TC filter removed from %s", dp.iface)
		}
	} else if dp.tcLink != nil {
		if err := dp.tcLink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detaching TC program: %w", err))
		}
	}

	if dp.coll != nil {
		dp.coll.Close()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Info("Data plane closed successfully")
	return nil
}

// GetStatistics retrieves current packet marking statistics
func (dp *DataPlane) GetStatistics() Statistics {
	stats := Statistics{}

	// Read a per-CPU counter and sum across CPUs.
	readStat := func(key uint32) uint64 {
		var values []uint64
		if err := dp.coll.Maps[statsMapName].Lookup(&key, &values); err != nil {
			log.Debugf("Failed to lookup stat key %d: %v", key, err)
			return 0
		}

		var total uint64
		for _, v := range values {
			total += v
		}
		return total
	}

	stats.TotalPackets = readStat(statTotalPackets)
	stats.MarkedPackets = readStat(statMarkedPackets)
	stats.PrioritizedPackets = readStat(statPrioritizedPackets)
	stats.PolicyHits = readStat(statPolicyHits)
	stats.PolicyMisses = readStat(statPolicyMisses)

	return stats
}

// markEventLen is the size of struct mark_event emitted by the BPF program:
// translated id u16, policy id u16, direction u8, dscp u8, user priority u8,
// pad u8.
const markEventLen = 8

// MonitorMarkEvents continuously reads marking events from the ring buffer
// and logs them. Intended to run in its own goroutine; it returns when the
// data plane is closed.
func (dp *DataPlane) MonitorMarkEvents() {
	log.Info("Starting mark event monitoring")

	for {
		record, err := dp.rbReader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				log.Info("Ring buffer closed")
				return
			}
			log.Errorf("Reading from ring buffer: %v", err)
			continue
		}

		if len(record.RawSample) < markEventLen {
			log.Warn("Received incomplete mark event")
			continue
		}

		translatedID := binary.LittleEndian.Uint16(record.RawSample[0:2])
		policyID := binary.LittleEndian.Uint16(record.RawSample[2:4])
		direction := record.RawSample[4]
		dscp := record.RawSample[5]
		userPriority := record.RawSample[6]

		if direction == 0 {
			log.Infof("[MARK EVENT] policy_id=%d translated_id=%d uplink dscp=%d",
				policyID, translatedID, dscp)
		} else {
			log.Infof("[MARK EVENT] policy_id=%d translated_id=%d downlink up=%d",
				policyID, translatedID, userPriority)
		}
	}
}

// GetQoSPolicyMap returns the policy array map for external access
func (dp *DataPlane) GetQoSPolicyMap() *ebpf.Map {
	return dp.coll.Maps[policyMapName]
}

// isFileExistsError checks if an error is due to "file exists"
func isFileExistsError(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == "file exists" ||
		err.Error() == unix.EEXIST.Error() ||
		errors.Is(err, unix.EEXIST)
}
