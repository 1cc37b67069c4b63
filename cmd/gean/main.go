package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethcore/beaconcore/clock"
	"github.com/ethcore/beaconcore/genesis"
	"github.com/ethcore/beaconcore/orchestrator"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
	"github.com/ethcore/beaconcore/store"
)

func main() {
	genesisTime := flag.Uint64("genesis-time", 0, "Genesis time (Unix timestamp). Defaults to 10 seconds from now.")
	validators := flag.Uint64("validators", 64, "Number of deterministic interop validators to seed genesis with")
	dataDir := flag.String("data-dir", "", "Directory for the finalized archive (empty keeps everything hot/in-memory)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	fmt.Println("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━ beaconcore ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	level := slog.LevelInfo
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	genesisTimestamp := *genesisTime
	if genesisTimestamp == 0 {
		genesisTimestamp = uint64(time.Now().Unix()) + 10
		logger.Info("genesis time not set, using now + 10 seconds", "genesis_time", genesisTimestamp)
	}

	cfg := params.Mainnet()

	deposits, err := genesis.DeterministicDeposits(cfg, primitives.Bytes32{}, *validators, primitives.Gwei(cfg.MaxEffectiveBalance))
	if err != nil {
		logger.Error("failed to build deterministic deposits", "error", err)
		os.Exit(1)
	}
	genesisState, err := genesis.BeaconState(cfg, genesisTimestamp, primitives.Bytes32{}, deposits)
	if err != nil {
		logger.Error("failed to build genesis state", "error", err)
		os.Exit(1)
	}
	genesisBlock, err := genesis.Block(genesisState)
	if err != nil {
		logger.Error("failed to build genesis block", "error", err)
		os.Exit(1)
	}
	genesisRoot, err := ssz.HashTreeRoot(&genesisBlock.Message)
	if err != nil {
		logger.Error("failed to hash genesis block", "error", err)
		os.Exit(1)
	}
	logger.Info("genesis constructed", "validators", len(genesisState.Validators), "genesis_root", fmt.Sprintf("%x", genesisRoot))

	var st *store.Store
	if *dataDir != "" {
		st, err = store.Open(cfg, store.Archive, *dataDir)
	} else {
		st = store.New(cfg, store.Archive)
	}
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	orch, err := orchestrator.New(cfg, st, genesisBlock, genesisState, logger)
	if err != nil {
		logger.Error("failed to seed orchestrator", "error", err)
		os.Exit(1)
	}

	sc := clock.New(genesisTimestamp, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go watchEvents(ctx, orch.Events(), logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("beaconcore running", "head", fmt.Sprintf("%x", orch.Head()))
	runSlotLoop(ctx, sc, orch.Events(), sigCh, logger)

	logger.Info("shutting down...")
	cancel()
	if err := st.Close(); err != nil {
		logger.Warn("error closing store", "error", err)
	}
}

// runSlotLoop publishes a SlotTick every wall-clock slot boundary until
// interrupted. Block production/import is driven externally (a
// networking layer handing blocks to orchestrator.OnBlock), which is
// out of scope here; this loop only demonstrates the clock driving the
// orchestrator's event sink.
func runSlotLoop(ctx context.Context, sc *clock.SlotClock, events *orchestrator.EventSink, sigCh chan os.Signal, logger *slog.Logger) {
	var lastSlot primitives.Slot
	for {
		select {
		case <-sigCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(sc.UntilNextSlot()):
			slot := sc.CurrentSlot()
			if slot == lastSlot {
				continue
			}
			lastSlot = slot
			select {
			case events.SlotTick <- slot:
			default:
				logger.Warn("slot tick dropped, consumer backlogged", "slot", slot)
			}
		}
	}
}

func watchEvents(ctx context.Context, events *orchestrator.EventSink, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case head := <-events.HeadUpdate:
			logger.Info("head updated", "root", fmt.Sprintf("%x", head))
		case cp := <-events.Finalized:
			logger.Info("finalized", "epoch", cp.Epoch, "root", fmt.Sprintf("%x", cp.Root))
		case slot := <-events.SlotTick:
			logger.Debug("slot tick", "slot", slot)
		}
	}
}
