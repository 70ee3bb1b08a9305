// Command fsoeslave-demo answers one FSoE master connection over a
// SocketCAN interface, polling at a fixed cycle period until interrupted.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	fsoe "github.com/samsamfire/gofsoe"
	"github.com/samsamfire/gofsoe/internal/transport/cansocket"
	"github.com/samsamfire/gofsoe/pkg/slave"
	"gopkg.in/ini.v1"
)

type demoConfig struct {
	iface         string
	txID, rxID    uint32
	slaveAddress  uint16
	inputsSize    int
	outputsSize   int
	cyclePeriodMs int
}

func loadConfig(path string) (demoConfig, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return demoConfig{}, fmt.Errorf("load %s: %w", path, err)
	}
	sec := cfg.Section("fsoe")
	return demoConfig{
		iface:         sec.Key("interface").MustString("can0"),
		txID:          uint32(sec.Key("tx_id").MustUint(0x580)),
		rxID:          uint32(sec.Key("rx_id").MustUint(0x600)),
		slaveAddress:  uint16(sec.Key("slave_address").MustUint(1)),
		inputsSize:    sec.Key("inputs_size").MustInt(2),
		outputsSize:   sec.Key("outputs_size").MustInt(2),
		cyclePeriodMs: sec.Key("cycle_period_ms").MustInt(10),
	}, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	path := "fsoeslave.ini"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := loadConfig(path)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	channel, err := cansocket.New(cfg.iface, cfg.txID, cfg.rxID)
	if err != nil {
		logger.Error("cansocket open failed", "error", err)
		os.Exit(1)
	}
	defer channel.Close()

	outputs := make([]byte, cfg.outputsSize)
	inputs := make([]byte, cfg.inputsSize)

	hooks := fsoe.Hooks{
		Send: channel.Send,
		Recv: channel.Recv,
		GenerateSessionID: func() uint16 {
			return uint16(rand.Intn(0x10000))
		},
		VerifyParameters: func(timeoutMs uint16, appParams []byte) fsoe.ResetReason {
			// Accept whatever the master offers; a real safety device would
			// cross-check appParams against its own local configuration.
			return 0
		},
		HandleUserError: func(kind fsoe.UserErrorKind) {
			logger.Error("host precondition violated", "kind", kind)
		},
	}

	s, err := slave.New(fsoe.SlaveConfig{
		SlaveAddress: cfg.slaveAddress,
		InputsSize:   cfg.inputsSize,
		OutputsSize:  cfg.outputsSize,
	}, hooks, logger)
	if err != nil {
		logger.Error("slave init failed", "error", err)
		os.Exit(1)
	}
	s.SetProcessDataSendingEnabled()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.cyclePeriodMs) * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	lastState := fsoe.State(255)

	for {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			return
		case <-ticker.C:
			nowMs := uint64(time.Since(start).Milliseconds())
			status, err := s.SyncWithPeer(nowMs, outputs, inputs)
			if err != nil {
				logger.Error("sync failed", "error", err)
				continue
			}
			if status.State != lastState {
				logger.Info("state change", "state", status.State, "reset_event", status.ResetEvent, "reset_reason", status.ResetReason)
				lastState = status.State
			}
		}
	}
}
