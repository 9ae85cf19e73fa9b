// Package dbwriter is the optional persisted-output consumer: it drains a
// FeatureRecord queue and batches rows into a single parameterized
// multi-row INSERT per batch. The statement text is rebuilt and executed
// on every flush; no prepared statement is kept across flushes.
package dbwriter

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"featureengine/internal/types"
)

const columnsPerRow = 18

// DefaultBatchSize is the spec-recommended batch size for multi-row
// inserts (50-100 rows per statement).
const DefaultBatchSize = 64

// Writer owns its batch buffer and the underlying connection. It is meant
// to be driven by a single task reading from a must-deliver FeatureRecord
// channel; no cross-task locking is used or needed.
type Writer struct {
	db        *sql.DB
	table     string
	batchSize int
	buf       []types.FeatureRecord
}

// Open connects to a Postgres dbURL and creates the writer's target table
// if it does not already exist.
func Open(dbURL, table string, batchSize int) (*Writer, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	w := &Writer{db: db, table: table, batchSize: batchSize}
	if err := w.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return w, nil
}

func (w *Writer) initSchema() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		trade_time_s     DOUBLE PRECISION,
		source           TEXT,
		price            DOUBLE PRECISION,
		maker_quantity   DOUBLE PRECISION,
		taker_quantity   DOUBLE PRECISION,
		obi              DOUBLE PRECISION,
		obi_range_1      DOUBLE PRECISION,
		obi_range_2      DOUBLE PRECISION,
		spread           DOUBLE PRECISION,
		tick_bar_id      TEXT,
		tick_imb         DOUBLE PRECISION,
		tick_threshold   DOUBLE PRECISION,
		volume_bar_id    TEXT,
		volume_imb       DOUBLE PRECISION,
		volume_threshold DOUBLE PRECISION,
		dollar_bar_id    TEXT,
		dollar_imb       DOUBLE PRECISION,
		dollar_threshold DOUBLE PRECISION
	)`, pqIdent(w.table))
	_, err := w.db.Exec(stmt)
	return err
}

// Close flushes any buffered rows and closes the connection.
func (w *Writer) Close() error {
	if err := w.Flush(context.Background()); err != nil {
		log.Printf("dbwriter: flush on close: %v", err)
	}
	return w.db.Close()
}

// Add buffers rec and flushes automatically once the batch reaches
// batchSize.
func (w *Writer) Add(ctx context.Context, rec types.FeatureRecord) error {
	w.buf = append(w.buf, rec)
	if len(w.buf) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered rows as a single multi-row INSERT statement and
// clears the buffer.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}

	query, args := w.buildInsert(w.buf)
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}

func (w *Writer) buildInsert(rows []types.FeatureRecord) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (trade_time_s, source, price, maker_quantity, "+
		"taker_quantity, obi, obi_range_1, obi_range_2, spread, tick_bar_id, tick_imb, "+
		"tick_threshold, volume_bar_id, volume_imb, volume_threshold, dollar_bar_id, "+
		"dollar_imb, dollar_threshold) VALUES ", pqIdent(w.table))

	args := make([]any, 0, len(rows)*columnsPerRow)
	for i, rec := range rows {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		base := i * columnsPerRow
		for c := 0; c < columnsPerRow; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", base+c+1)
		}
		sb.WriteByte(')')

		price, _ := rec.Price.Float64()
		var obi1, obi2 float64
		if len(rec.OBIRange) > 0 {
			obi1 = rec.OBIRange[0]
		}
		if len(rec.OBIRange) > 1 {
			obi2 = rec.OBIRange[1]
		}
		makerQty, _ := rec.MakerQuantity.Float64()
		takerQty, _ := rec.TakerQuantity.Float64()

		args = append(args,
			float64(rec.TradeTime)/1000.0,
			string(rec.Source),
			price,
			makerQty,
			takerQty,
			rec.OBI,
			obi1,
			obi2,
			rec.Spread,
			rec.TickBar.LastBarID,
			rec.TickBar.LastImbalance,
			rec.TickBar.LastThreshold,
			rec.VolumeBar.LastBarID,
			rec.VolumeBar.LastImbalance,
			rec.VolumeBar.LastThreshold,
			rec.DollarBar.LastBarID,
			rec.DollarBar.LastImbalance,
			rec.DollarBar.LastThreshold,
		)
	}
	return sb.String(), args
}

// flushPeriod bounds how long a partial batch can sit unflushed when the
// source isn't publishing fast enough to fill a batch on its own.
const flushPeriod = 1 * time.Second

// Run drains in until ctx is cancelled, buffering and flushing records. It
// is the DB writer's task body: per the concurrency model, the DB writer
// owns its batch buffer exclusively and no other task touches it. Batches
// flush on a timer or when the batch fills, whichever comes first.
func Run(ctx context.Context, w *Writer, in <-chan types.FeatureRecord) {
	defer w.Close()

	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				log.Printf("dbwriter: timed flush: %v", err)
			}
		case rec, ok := <-in:
			if !ok {
				return
			}
			if err := w.Add(ctx, rec); err != nil {
				log.Printf("dbwriter: add: %v", err)
			}
		}
	}
}

// pqIdent quotes a table name for safe interpolation into DDL/DML text that
// cannot use a placeholder (identifiers aren't parameterizable in SQL).
func pqIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
