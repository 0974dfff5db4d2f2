package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"VaultLedger/internal/access"
	"VaultLedger/internal/config"
	"VaultLedger/internal/custody"
	"VaultLedger/internal/engine"
	"VaultLedger/internal/event"
	"VaultLedger/internal/governance"
	"VaultLedger/internal/ingestion"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/oracle"
	"VaultLedger/internal/persistence"
	"VaultLedger/internal/projection"
	"VaultLedger/internal/query"
	"VaultLedger/internal/registry"
	"VaultLedger/internal/server"
	"VaultLedger/internal/token"
	"VaultLedger/internal/valuation"
	"VaultLedger/internal/vault"
)

func main() {
	log := observability.NewLogger("vaultledger")
	log.Info().Msg("VaultLedger starting")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	treasury, err := uuid.Parse(cfg.TreasuryID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid VAULT_TREASURY_ID")
	}
	custodyID, err := uuid.Parse(cfg.CustodyID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid VAULT_CUSTODY_ID")
	}

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("Postgres connected")

	// --- Run SQL migrations ---
	migrator := persistence.NewMigrator(db, cfg.MigrationsDir)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	log.Info().Msg("migrations applied")

	snapMgr := persistence.NewSnapshotManager(db)

	// --- Recovery: load snapshot ---
	startSequence := int64(0)
	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load snapshot")
	}
	if snap != nil {
		startSequence = snap.Sequence + 1
		log.Info().Int64("sequence", snap.Sequence).Msg("loaded snapshot")
	} else {
		log.Info().Msg("no snapshot found, cold start from sequence 0")
	}
	// A snapshot older than the log means a crash between persist and
	// snapshot. The engine resumes past the log's head; vault state past the
	// snapshot is reconstructed operationally, never re-applied blind.
	if maxSeq, err := snapMgr.GetLatestSequence(ctx); err == nil && maxSeq >= startSequence {
		log.Warn().Int64("snapshot_seq", startSequence-1).Int64("log_seq", maxSeq).
			Msg("event log ahead of snapshot, resuming after log head")
		startSequence = maxSeq + 1
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Collaborators ---
	roles := access.NewStaticRoles()
	if adminEnv := os.Getenv("VAULT_ADMIN_ID"); adminEnv != "" {
		admin, err := uuid.Parse(adminEnv)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid VAULT_ADMIN_ID")
		}
		roles.GrantAdmin(admin)
		log.Info().Str("admin", admin.String()).Msg("admin role granted")
	}
	if operatorEnv := os.Getenv("VAULT_OPERATOR_ID"); operatorEnv != "" {
		operator, err := uuid.Parse(operatorEnv)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid VAULT_OPERATOR_ID")
		}
		roles.GrantOperator(operator)
	}

	gate := access.NewGate(roles)
	gov := governance.NewStore(governance.DefaultParams())
	priceOracle := oracle.NewStaticOracle()
	val := valuation.NewAdapter(priceOracle, gov)
	vaultRegistry := registry.NewMemory()
	debtToken := token.NewMemory()
	custodian := custody.NewMemory()

	// --- Fee state and ledger ---
	now := time.Now().Unix()
	var feeState *vault.GlobalFeeState
	if snap != nil {
		feeState = vault.RestoreFeeState(snap.FeeState)
	} else {
		feeState, err = vault.NewGlobalFeeState(cfg.InitialFeeRate, now)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid initial fee rate")
		}
	}

	ledger := vault.NewLedger(feeState)
	if snap != nil {
		ledger.Restore(snap.NextVaultID, snap.Vaults)
		if snap.Paused {
			// Restart inherits the pause latch; clearing it stays admin-only.
			gate.ForcePaused(true)
		}
		if !snap.Private {
			gate.ForcePrivate(false)
		}
		log.Info().Int("vaults", ledger.VaultCount()).Msg("ledger state restored")
	}

	// --- Channels ---
	// Persist channel blocks (backpressure), projection channel drops.
	persistEngineChan := make(chan engine.Output, cfg.PersistChanSize)
	projectionEngineChan := make(chan engine.Output, cfg.ProjectionChanSize)

	persistWorkerChan := make(chan persistence.Output, cfg.PersistChanSize)
	projectionWorkerChan := make(chan projection.Output, cfg.ProjectionChanSize)
	publishChan := make(chan ingestion.PublishableEvent, cfg.PublishChanSize)

	// --- Engine and processor ---
	eng := engine.New(startSequence, engine.Deps{
		Ledger:   ledger,
		Gate:     gate,
		Val:      val,
		Gov:      gov,
		Registry: vaultRegistry,
		Token:    debtToken,
		Custody:  custodian,
		Treasury: treasury,
		Self:     custodyID,
	}, persistEngineChan, projectionEngineChan, log, metrics)
	if snap != nil {
		eng.RestoreStateHash(snap.StateHash)
	}

	processor := engine.NewProcessor(eng, cfg.CommandQueueDepth, log)

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Msg("NATS connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure NATS streams")
	}
	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure outbound stream")
	}

	rawCommandChan := make(chan ingestion.RawCommand, 4096)
	natsSubscriber := ingestion.NewNATSSubscriber(js, rawCommandChan)
	if err := natsSubscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatal().Err(err).Msg("nats subscribe")
	}

	priceFeedSub, err := ingestion.SubscribePriceFeed(nc, priceOracle)
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe price feed")
	}
	defer priceFeedSub.Unsubscribe()

	outboundPublisher := ingestion.NewOutboundPublisher(js, publishChan)

	// --- Services ---
	historyCache := projection.NewHistoryCache(cfg.HistoryCacheSize)
	warmHistoryCache(ctx, snapMgr, historyCache, cfg.HistoryCacheSize, log)
	queryService := query.NewService(db, historyCache)

	httpServer := server.NewHTTPServer(cfg.HTTPAddr, processor, queryService, healthChecker, log, metrics)
	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, log)

	// --- Start goroutines ---
	errChan := make(chan error, 10)

	persistWorker := persistence.NewWorker(db, persistWorkerChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout, log, metrics)
	go func() {
		errChan <- persistWorker.Run(ctx)
	}()

	projWorker := projection.NewWorker(db, projectionWorkerChan, historyCache, log)
	go func() {
		errChan <- projWorker.Run(ctx)
	}()

	go func() {
		errChan <- outboundPublisher.Run(ctx)
	}()

	// Output bridge: engine.Output -> persistence + projection + publish
	go bridgeOutputs(ctx, persistEngineChan, projectionEngineChan,
		persistWorkerChan, projectionWorkerChan, publishChan, metrics)

	// Command processor: the only goroutine touching the engine
	processorDone := make(chan struct{})
	go func() {
		processor.Run(ctx)
		close(processorDone)
	}()

	// NATS -> processor ingestion loop
	go runIngestionLoop(ctx, rawCommandChan, processor, log)

	go func() {
		errChan <- httpServer.Start()
	}()
	go func() {
		errChan <- grpcServer.Start()
	}()

	// Periodic snapshots
	go runPeriodicSnapshots(ctx, processor, snapMgr, cfg.SnapshotInterval, log, metrics)

	// Prometheus metrics server
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			metricsServer.Shutdown(shutCtx)
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Channel utilization sampler
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetChannelMetrics("persist", len(persistEngineChan), cap(persistEngineChan))
				metrics.SetChannelMetrics("projection", len(projectionEngineChan), cap(projectionEngineChan))
				metrics.SetChannelMetrics("publish", len(publishChan), cap(publishChan))
				size, capacity := processor.QueueDepth()
				metrics.SetChannelMetrics("commands", size, capacity)
			}
		}
	}()

	healthChecker.SetReady(true)
	grpcServer.SetServing(true)

	log.Info().
		Int64("sequence", startSequence).
		Str("http", cfg.HTTPAddr).
		Str("grpc", cfg.GRPCAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("VaultLedger ready")

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	healthChecker.SetReady(false)
	grpcServer.SetServing(false)

	// Stop intake first so the engine drains cleanly.
	natsSubscriber.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	grpcServer.Stop()

	cancel()

	close(persistWorkerChan)
	close(projectionWorkerChan)
	close(publishChan)

	// Final snapshot so the next start is warm. The processor has exited,
	// so reading the engine directly is safe again.
	<-processorDone
	if err := persistSnapshot(shutdownCtx, captureSnapshot(eng), snapMgr, metrics); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	log.Info().Msg("VaultLedger shutdown complete")
}

// bridgeOutputs converts engine.Output to the persistence, projection, and
// publish formats. This keeps the engine free of import cycles with its
// downstream workers.
func bridgeOutputs(
	ctx context.Context,
	persistIn, projectionIn <-chan engine.Output,
	persistOut chan<- persistence.Output,
	projectionOut chan<- projection.Output,
	publishOut chan<- ingestion.PublishableEvent,
	metrics *observability.Metrics,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case output, ok := <-persistIn:
			if !ok {
				return
			}

			env := output.Envelope
			payload := persistence.MarshalPayload(env.Payload)

			var vaultID *int64
			if env.VaultID != nil {
				id := int64(*env.VaultID)
				vaultID = &id
			}

			persistOut <- persistence.Output{
				EventRow: persistence.EventRow{
					Sequence:  env.Sequence,
					EventType: env.EventType.String(),
					Actor:     env.Actor.String(),
					VaultID:   vaultID,
					Payload:   payload,
					Timestamp: env.Timestamp,
				},
			}

			// Outbound publish rides the persist stream so consumers never
			// see a notification that is not also headed for the log.
			select {
			case publishOut <- ingestion.PublishableEvent{
				Sequence:  env.Sequence,
				EventType: env.EventType.String(),
				Actor:     env.Actor.String(),
				VaultID:   env.VaultID,
				Payload:   env.Payload,
				Timestamp: env.Timestamp,
			}:
			default:
				if metrics != nil {
					metrics.PublishDrops.Inc()
				}
			}

		case output, ok := <-projectionIn:
			if !ok {
				return
			}

			env := output.Envelope
			var vaultID *int64
			if env.VaultID != nil {
				id := int64(*env.VaultID)
				vaultID = &id
			}

			pOutput := projection.Output{
				Sequence:  env.Sequence,
				EventType: env.EventType.String(),
				Actor:     env.Actor.String(),
				VaultID:   vaultID,
				Payload:   persistence.MarshalPayload(env.Payload),
				Timestamp: env.Timestamp.Unix(),
			}

			if output.VaultState != nil {
				s := output.VaultState
				pOutput.State = &projection.VaultState{
					VaultID:           s.ID,
					DebtPrincipal:     s.DebtPrincipal,
					AccruedFee:        s.AccruedFee,
					FeeIndexSnapshot:  s.FeeIndexSnapshot,
					SnapshotTimestamp: s.SnapshotTimestamp,
					Units:             s.Units,
					Version:           s.Version,
					Closed: env.EventType == event.EventTypeVaultClosed ||
						env.EventType == event.EventTypeVaultLiquidated,
				}
			}

			select {
			case projectionOut <- pOutput:
			default:
				// Drop: projections rebuild from the event log.
			}
		}
	}
}

// runIngestionLoop reads raw commands from NATS, parses them, and submits
// them to the processor. Commands are acked once the engine has decided;
// parse failures are acked too so they never redeliver.
func runIngestionLoop(
	ctx context.Context,
	rawChan <-chan ingestion.RawCommand,
	processor *engine.Processor,
	log zerolog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rawChan:
			if !ok {
				return
			}

			cmd, err := ingestion.ParseCommand(raw)
			if err != nil {
				log.Warn().Str("subject", raw.Subject).Err(err).Msg("command parse failed")
				raw.AckFunc()
				continue
			}

			res := processor.Submit(ctx, cmd)
			if res.Err != nil && (res.Err == context.Canceled || res.Err == context.DeadlineExceeded) {
				raw.NakFunc()
				continue
			}
			if res.Err != nil {
				// Engine rejections are final: redelivery would hit the
				// same validation, so ack and move on.
				log.Debug().Str("subject", raw.Subject).Err(res.Err).Msg("command rejected")
			}
			raw.AckFunc()
		}
	}
}

// warmHistoryCache preloads the recent-history cache from the tail of the
// event log so queries right after a restart don't all fall through to
// Postgres.
func warmHistoryCache(
	ctx context.Context,
	snapMgr *persistence.SnapshotManager,
	cache *projection.HistoryCache,
	size int,
	log zerolog.Logger,
) {
	logHead, err := snapMgr.GetLatestSequence(ctx)
	if err != nil || logHead < 0 {
		return
	}
	from := logHead - int64(size) + 1
	if from < 0 {
		from = 0
	}
	events, err := snapMgr.LoadEventsFrom(ctx, from, size)
	if err != nil {
		log.Warn().Err(err).Msg("history cache warm-up failed")
		return
	}
	for _, e := range events {
		cache.Add(projection.Output{
			Sequence:  e.Sequence,
			EventType: e.EventType,
			Actor:     e.Actor,
			VaultID:   e.VaultID,
			Payload:   e.Payload,
			Timestamp: e.Timestamp.Unix(),
		})
	}
	log.Info().Int("events", len(events)).Msg("history cache warmed")
}

// runPeriodicSnapshots saves a snapshot once the sequence has advanced by
// at least interval notifications since the last one. Engine state is
// captured on the processor goroutine via Inspect so the ticker never
// races live command processing.
func runPeriodicSnapshots(
	ctx context.Context,
	processor *engine.Processor,
	snapMgr *persistence.SnapshotManager,
	interval int64,
	log zerolog.Logger,
	metrics *observability.Metrics,
) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastSnapSeq int64 = -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var data *persistence.SnapshotData
			if err := processor.Inspect(ctx, func(eng *engine.Engine) {
				seq := eng.Sequence() - 1
				if lastSnapSeq >= 0 && seq-lastSnapSeq < interval {
					return
				}
				data = captureSnapshot(eng)
			}); err != nil {
				continue
			}
			if data == nil {
				continue
			}
			if err := persistSnapshot(ctx, data, snapMgr, metrics); err != nil {
				log.Error().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSnapSeq = data.Sequence
			log.Info().Int64("sequence", data.Sequence).Msg("snapshot saved")
		}
	}
}

// captureSnapshot copies engine state into a persistence snapshot. Callers
// must hold the processor goroutine (Inspect) or know it has stopped.
func captureSnapshot(eng *engine.Engine) *persistence.SnapshotData {
	ledger := eng.Ledger()
	gate := eng.Gate()
	vaults := ledger.AllVaults()
	snaps := make([]vault.Snapshot, 0, len(vaults))
	for _, v := range vaults {
		snaps = append(snaps, v.Snapshot())
	}

	return &persistence.SnapshotData{
		Sequence:    eng.Sequence() - 1,
		NextVaultID: uint64(ledger.NextID()),
		FeeState:    ledger.FeeState().Snapshot(),
		Vaults:      snaps,
		Paused:      gate.Paused(),
		Private:     gate.Private(),
		StateHash:   eng.StateHash(),
		CreatedAt:   time.Now().UTC(),
	}
}

// persistSnapshot writes a captured snapshot.
func persistSnapshot(
	ctx context.Context,
	data *persistence.SnapshotData,
	snapMgr *persistence.SnapshotManager,
	metrics *observability.Metrics,
) error {
	start := time.Now()
	if err := snapMgr.SaveSnapshot(ctx, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if metrics != nil {
		metrics.SnapshotTaken.Inc()
		metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}
