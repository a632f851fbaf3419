package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/puck.report/internal/config"
	"github.com/banshee-data/puck.report/internal/lidar"
	"github.com/banshee-data/puck.report/internal/lidar/network"
	"github.com/banshee-data/puck.report/internal/lidardb"
	"github.com/banshee-data/puck.report/internal/monitoring"
)

var (
	udpPort        = flag.Int("udp-port", 2368, "UDP port to listen for lidar packets")
	udpAddress     = flag.String("udp-addr", "", "UDP bind address (default: listen on all interfaces)")
	sensorID       = flag.String("sensor-id", "", "Sensor identifier recorded with sweeps (default from config)")
	configFile     = flag.String("config", "", "Path to decoder tuning JSON (optional)")
	minRange       = flag.Float64("min-range", 0, "Minimum valid return distance in meters (overrides config)")
	maxRange       = flag.Float64("max-range", 0, "Maximum valid return distance in meters (overrides config)")
	pcapFile       = flag.String("pcap", "", "Replay packets from a PCAP file instead of live UDP (requires -tags=pcap build)")
	forwardPackets = flag.Bool("forward", false, "Forward received UDP packets to another consumer")
	forwardPort    = flag.Int("forward-port", 2369, "Port to forward UDP packets to (for LidarView monitoring)")
	forwardAddr    = flag.String("forward-addr", "localhost", "Address to forward UDP packets to")
	dbFile         = flag.String("db", "lidar_data.db", "Path to the SQLite database file (empty disables persistence)")
	rcvBuf         = flag.Int("rcvbuf", 0, "UDP receive buffer size in bytes (overrides config)")
	logInterval    = flag.Duration("log-interval", 0, "Statistics logging interval (overrides config)")
	debug          = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	monitoring.SetDebug(*debug)

	cfg := config.EmptyDecoderConfig()
	if *configFile != "" {
		loaded, err := config.LoadDecoderConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags override the config file.
	sensor := cfg.GetSensorID()
	if *sensorID != "" {
		sensor = *sensorID
	}
	min := cfg.GetMinRange()
	if *minRange > 0 {
		min = *minRange
	}
	max := cfg.GetMaxRange()
	if *maxRange > 0 {
		max = *maxRange
	}
	rcv := cfg.GetRcvBuf()
	if *rcvBuf > 0 {
		rcv = *rcvBuf
	}
	interval := cfg.GetLogInterval()
	if *logInterval > 0 {
		interval = *logInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := network.NewPacketStats()

	// Optional persistence of sweep summaries.
	var db *lidardb.LidarDB
	var sessionID int64
	if *dbFile != "" {
		var err error
		db, err = lidardb.NewLidarDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open lidar database: %v", err)
		}
		defer db.Close()

		source := *pcapFile
		if source == "" {
			source = fmt.Sprintf("udp:%d", *udpPort)
		}
		sessionID, err = db.StartSession(sensor, source, "")
		if err != nil {
			log.Fatalf("failed to start capture session: %v", err)
		}
		defer func() {
			if err := db.EndSession(sessionID); err != nil {
				log.Printf("failed to close capture session: %v", err)
			}
		}()
	}

	decoder := lidar.NewSweepDecoder(lidar.SweepDecoderConfig{
		SensorID:     sensor,
		MinRange:     min,
		MaxRange:     max,
		RingCapacity: cfg.GetRingCapacity(),
		OnSweep: func(s *lidar.Sweep) {
			stats.AddSweep(s.PointCount())
			monitoring.Debugf("sweep %d: %d points over %.3fs", s.Sequence, s.PointCount(), s.Duration)
			if db != nil {
				if _, err := db.RecordSweep(sessionID, s); err != nil {
					log.Printf("failed to record sweep %d: %v", s.Sequence, err)
				}
			}
		},
	})

	var forwarder *network.PacketForwarder
	if *forwardPackets {
		var err error
		forwarder, err = network.NewPacketForwarder(*forwardAddr, *forwardPort, stats, time.Minute)
		if err != nil {
			log.Fatalf("failed to create packet forwarder: %v", err)
		}
		defer forwarder.Close()
	}

	if *pcapFile != "" {
		if err := network.ReadPCAPFile(ctx, *pcapFile, *udpPort, decoder, stats, forwarder); err != nil && ctx.Err() == nil {
			log.Fatalf("PCAP replay failed: %v", err)
		}
		stats.LogStats()
		return
	}

	listener := network.NewUDPListener(network.UDPListenerConfig{
		Address:     fmt.Sprintf("%s:%d", *udpAddress, *udpPort),
		RcvBuf:      rcv,
		LogInterval: interval,
		Stats:       stats,
		Forwarder:   forwarder,
		Decoder:     decoder,
	})
	defer listener.Close()

	if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("UDP listener failed: %v", err)
	}
}
