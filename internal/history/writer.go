package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"binance-sweep-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// SellRecord is one executed (or simulated) market sell.
type SellRecord struct {
	Time      time.Time
	Cycle     int64
	Asset     string
	Symbol    string
	Quantity  float64
	Price     float64
	Notional  float64
	Status    string
	OrderID   int64
	Simulated bool
}

// CycleRecord is the aggregate outcome of one sweep cycle.
type CycleRecord struct {
	Time          time.Time
	Cycle         int64
	Target        string
	DryRun        bool
	Consolidated  int
	Sold          int
	Dust          int
	Skipped       int
	Failed        int
	DustConverted int
	DustDeferred  int
	NotionalSold  float64
}

// Writer persists sell and cycle records to Postgres asynchronously. Inserts
// ride a bounded queue so a slow database never stalls the sweep loop;
// overflow drops records with a warning.
type Writer struct {
	db      *sql.DB
	log     *zap.Logger
	schema  string
	sells   chan SellRecord
	cycles  chan CycleRecord
	started atomic.Bool
	dropped atomic.Uint64
}

func New(cfg config.HistoryConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("history dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		sells:  make(chan SellRecord, queueSize),
		cycles: make(chan CycleRecord, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	w.drain()
	return w.db.Close()
}

// drain flushes whatever is still queued before the database handle closes.
// Single-cycle runs never start the run loop, and a cancelled loop can leave
// records behind; either way the rows are written synchronously here.
func (w *Writer) drain() {
	ctx := context.Background()
	for {
		select {
		case record := <-w.sells:
			w.writeSell(ctx, record)
		case record := <-w.cycles:
			w.writeCycle(ctx, record)
		default:
			return
		}
	}
}

func (w *Writer) EnqueueSell(record SellRecord) {
	if w == nil {
		return
	}
	select {
	case w.sells <- record:
	default:
		if w.dropped.Add(1) == 1 && w.log != nil {
			w.log.Warn("history sell queue full")
		}
	}
}

func (w *Writer) EnqueueCycle(record CycleRecord) {
	if w == nil {
		return
	}
	select {
	case w.cycles <- record:
	default:
		if w.dropped.Add(1) == 1 && w.log != nil {
			w.log.Warn("history cycle queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-w.sells:
			w.writeSell(ctx, record)
		case record := <-w.cycles:
			w.writeCycle(ctx, record)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("history db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		cycle BIGINT NOT NULL,
		asset TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		notional DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		order_id BIGINT NOT NULL,
		simulated BOOLEAN NOT NULL
	)`, w.table("sweep_sells"))); err != nil {
		return err
	}
	return w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		cycle BIGINT NOT NULL,
		target TEXT NOT NULL,
		dry_run BOOLEAN NOT NULL,
		consolidated INTEGER NOT NULL,
		sold INTEGER NOT NULL,
		dust INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		dust_converted INTEGER NOT NULL,
		dust_deferred INTEGER NOT NULL,
		notional_sold DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (ts, cycle)
	)`, w.table("sweep_cycles")))
}

func (w *Writer) writeSell(ctx context.Context, record SellRecord) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, cycle, asset, symbol, quantity, price, notional, status, order_id, simulated
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
	)`, w.table("sweep_sells"))
	if _, err := w.db.ExecContext(ctx, query,
		record.Time,
		record.Cycle,
		record.Asset,
		record.Symbol,
		record.Quantity,
		record.Price,
		record.Notional,
		record.Status,
		record.OrderID,
		record.Simulated,
	); err != nil && w.log != nil {
		w.log.Warn("history sell insert failed", zap.Error(err))
	}
}

func (w *Writer) writeCycle(ctx context.Context, record CycleRecord) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, cycle, target, dry_run, consolidated, sold, dust, skipped, failed,
		dust_converted, dust_deferred, notional_sold
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	)
	ON CONFLICT (ts, cycle) DO NOTHING`, w.table("sweep_cycles"))
	if _, err := w.db.ExecContext(ctx, query,
		record.Time,
		record.Cycle,
		record.Target,
		record.DryRun,
		record.Consolidated,
		record.Sold,
		record.Dust,
		record.Skipped,
		record.Failed,
		record.DustConverted,
		record.DustDeferred,
		record.NotionalSold,
	); err != nil && w.log != nil {
		w.log.Warn("history cycle insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
