// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qos-policy-agent/agent/pkg/api"
	"github.com/qos-policy-agent/agent/pkg/dataplane"
	"github.com/qos-policy-agent/agent/pkg/qos"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	iface         string
	bpfObjPath    string
	storagePath   string
	logLevel      string
	statsInterval int
	enableAPI     bool
	apiHost       string
	apiPort       int
)

var rootCmd = &cobra.Command{
	Use:   "qos-agent",
	Short: "eBPF-based QoS traffic classification agent",
	Long:  `An agent that accepts QoS classification policies, assigns translated policy IDs, and marks matching egress traffic using an eBPF TC program`,
	Run:   runAgent,
}

func init() {
	rootCmd.Flags().StringVarP(&iface, "interface", "i", "lo", "Network interface to attach eBPF program")
	rootCmd.Flags().StringVarP(&bpfObjPath, "bpf-obj", "b", "bpf/tc_qos_marker.o", "Path to compiled BPF object file")
	rootCmd.Flags().StringVarP(&storagePath, "db", "d", "", "Path to policy database (empty disables persistence)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().IntVarP(&statsInterval, "stats-interval", "s", 5, "Statistics print interval in seconds")
	rootCmd.Flags().BoolVarP(&enableAPI, "enable-api", "a", true, "Enable REST API server")
	rootCmd.Flags().StringVar(&apiHost, "api-host", "127.0.0.1", "API server host")
	rootCmd.Flags().IntVar(&apiPort, "api-port", 8080, "API server port")
}

func runAgent(cmd *cobra.Command, args []string) {
	// Setup logging
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	log.Infof("Starting QoS agent on interface %s", iface)

	// Create data plane
	dp, err := dataplane.New(iface, bpfObjPath)
	if err != nil {
		log.Fatalf("Failed to create data plane: %v", err)
	}
	defer dp.Close()

	log.Info("✓ Data plane initialized")

	// Create policy manager, with persistence when a database path is given
	var pm *qos.PolicyManager
	if storagePath != "" {
		storage, err := qos.NewSQLiteStorage(storagePath)
		if err != nil {
			log.Fatalf("Failed to open policy storage: %v", err)
		}
		defer storage.Close()

		pm = qos.NewManagerWithStorage(dp.GetQoSPolicyMap(), storage)
		if err := pm.LoadPersisted(); err != nil {
			log.Warnf("Failed to restore persisted policies: %v", err)
		}
	} else {
		pm = qos.NewManager(dp.GetQoSPolicyMap())
	}

	log.Infof("✓ Policy manager initialized (%d policies)", pm.Count())

	// Start API server if enabled
	var apiServer *api.Server
	if enableAPI {
		apiConfig := &api.Config{
			Host:          apiHost,
			Port:          apiPort,
			EnableCORS:    true,
			LogLevel:      logLevel,
			Interface:     iface,
			BPFObjectPath: bpfObjPath,
			StoragePath:   storagePath,
			Version:       version,
		}

		apiServer, err = api.NewAPIServer(apiConfig, dp, pm)
		if err != nil {
			log.Fatalf("Failed to create API server: %v", err)
		}

		if err := apiServer.Start(); err != nil {
			log.Fatalf("Failed to start API server: %v", err)
		}

		log.Infof("✓ API server started on http://%s:%d", apiHost, apiPort)
	}

	// Start mark event monitoring
	go dp.MonitorMarkEvents()

	// Print statistics periodically
	ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			stats := dp.GetStatistics()
			log.Info("=== Statistics ===")
			log.Infof("  Total Packets:       %d", stats.TotalPackets)
			log.Infof("  Marked Packets:      %d", stats.MarkedPackets)
			log.Infof("  Prioritized Packets: %d", stats.PrioritizedPackets)
			log.Infof("  Policy Hits:         %d", stats.PolicyHits)
			log.Infof("  Policy Misses:       %d", stats.PolicyMisses)
		}
	}()

	// Wait for interrupt signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	log.Info("✓ Agent running. Press Ctrl+C to exit")

	<-sig
	log.Info("Shutting down...")

	// Stop API server if running
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			log.Errorf("Error stopping API server: %v", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
