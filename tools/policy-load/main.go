// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qos-policy-agent/agent/pkg/dataplane"
	"github.com/qos-policy-agent/agent/pkg/qos"

	log "github.com/sirupsen/logrus"
)

var (
	ifaceName     = flag.String("iface", "lo", "Network interface to attach eBPF program")
	objPath       = flag.String("bpf-obj", "bpf/tc_qos_marker.o", "Path to compiled BPF object file")
	count         = flag.Int("count", 50, "Number of synthetic policies to install (1-254)")
	duration      = flag.Int("duration", 30, "Observation duration in seconds")
	statsInterval = flag.Int("interval", 5, "Statistics reporting interval in seconds")
)

func main() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	log.Info("=== QoS Policy Load Test ===")
	log.Infof("Interface: %s", *ifaceName)
	log.Infof("Policies: %d", *count)
	log.Infof("Duration: %d seconds", *duration)
	log.Info("============================")

	dp, err := dataplane.New(*ifaceName, *objPath)
	if err != nil {
		log.Fatalf("Failed to create data plane: %v", err)
	}
	defer dp.Close()

	log.Info("✓ eBPF program loaded and attached successfully")

	pm := qos.NewManager(dp.GetQoSPolicyMap())

	installed := installSyntheticPolicies(pm, *count)
	log.Infof("✓ Installed %d policies", installed)

	go dp.MonitorMarkEvents()

	log.Info("=== Baseline Statistics ===")
	baselineStats := dp.GetStatistics()
	printStats(baselineStats)

	ticker := time.NewTicker(time.Duration(*statsInterval) * time.Second)
	defer ticker.Stop()

	done := make(chan bool)
	go func() {
		lastStats := baselineStats
		for {
			select {
			case <-ticker.C:
				currentStats := dp.GetStatistics()
				deltaStats := calculateDelta(currentStats, lastStats)
				log.Info("=== Delta Statistics (last interval) ===")
				printStats(deltaStats)

				pps := float64(deltaStats.TotalPackets) / float64(*statsInterval)
				log.Infof("Packet Rate: %.2f pps", pps)

				if deltaStats.TotalPackets > 0 {
					markRate := float64(deltaStats.MarkedPackets) / float64(deltaStats.TotalPackets) * 100
					hitRate := float64(deltaStats.PolicyHits) / float64(deltaStats.TotalPackets) * 100

					log.Infof("Mark Rate: %.2f%%", markRate)
					log.Infof("Policy Hit Rate: %.2f%%", hitRate)
				}

				lastStats = currentStats
			case <-done:
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-time.After(time.Duration(*duration) * time.Second):
		log.Info("=== Observation window completed ===")
	case <-sigChan:
		log.Info("=== Interrupted by user ===")
	}

	done <- true

	finalStats := dp.GetStatistics()
	totalStats := calculateDelta(finalStats, baselineStats)
	log.Info("=== Total Statistics ===")
	printStats(totalStats)

	if totalStats.TotalPackets > 0 {
		avgPps := float64(totalStats.TotalPackets) / float64(*duration)
		markRate := float64(totalStats.MarkedPackets) / float64(totalStats.TotalPackets) * 100

		log.Infof("Average Packet Rate: %.2f pps", avgPps)
		log.Infof("Overall Mark Rate: %.2f%%", markRate)
	} else {
		log.Warn("No packets processed during test")
		log.Info("Tip: Generate traffic to test, e.g., 'ping 127.0.0.1' or 'curl http://127.0.0.1'")
	}

	log.Info("=== Test Complete ===")
}

// installSyntheticPolicies fills the policy table with uplink policies
// spread across DSCP values and destination port ranges.
func installSyntheticPolicies(pm *qos.PolicyManager, n int) int {
	if n > int(qos.MaxPolicyID)-1 {
		n = int(qos.MaxPolicyID) - 1
	}

	installed := 0
	for i := 0; i < n; i++ {
		policyID := i + 1
		basePort := 8000 + i*10

		p, err := qos.NewBuilder(policyID, qos.DirectionUplink).
			SetDSCP(i % (qos.MaxDSCP + 1)).
			SetProtocol(qos.ProtocolUDP).
			SetDestinationAddress(net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, byte(policyID)}).
			SetDestinationPortRange(basePort, basePort+9).
			Build()
		if err != nil {
			log.Errorf("Failed to build policy %d: %v", policyID, err)
			continue
		}

		if err := pm.Add(p); err != nil {
			log.Errorf("Failed to add policy %d: %v", policyID, err)
			continue
		}
		installed++
	}
	return installed
}

func printStats(stats dataplane.Statistics) {
	log.Infof("  Total Packets:       %d", stats.TotalPackets)
	log.Infof("  Marked Packets:      %d", stats.MarkedPackets)
	log.Infof("  Prioritized Packets: %d", stats.PrioritizedPackets)
	log.Infof("  Policy Hits:         %d", stats.PolicyHits)
	log.Infof("  Policy Misses:       %d", stats.PolicyMisses)
}

func calculateDelta(current, previous dataplane.Statistics) dataplane.Statistics {
	return dataplane.Statistics{
		TotalPackets:       current.TotalPackets - previous.TotalPackets,
		MarkedPackets:      current.MarkedPackets - previous.MarkedPackets,
		PrioritizedPackets: current.PrioritizedPackets - previous.PrioritizedPackets,
		PolicyHits:         current.PolicyHits - previous.PolicyHits,
		PolicyMisses:       current.PolicyMisses - previous.PolicyMisses,
	}
}
