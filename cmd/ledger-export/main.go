// Command ledger-export dumps the order log and the sales aggregate to a
// gzip-compressed JSON file for offline reporting.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/coquipos/backend/internal/domain/order"
	"github.com/coquipos/backend/internal/domain/sales"
	"github.com/coquipos/backend/internal/storage/bolt"
	"github.com/coquipos/backend/internal/storage/postgres"
)

func main() {
	var (
		dataPath    string
		databaseURL string
		out         string
	)

	flag.StringVar(&dataPath, "data-path", "database/ledger.db", "bolt database file")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&out, "out", "export/orders.json.gz", "output file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataPath, databaseURL, out); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("export completed", slog.String("out", out))
}

func run(ctx context.Context, dataPath, databaseURL, out string) error {
	orderRepo, salesRepo, closeStorage, err := openStorage(ctx, dataPath, databaseURL)
	if err != nil {
		return err
	}
	defer closeStorage()

	var (
		log []order.Order
		agg *sales.Aggregate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		log, err = orderRepo.List(gctx)
		return errors.Wrap(err, "list orders")
	})
	g.Go(func() error {
		var err error
		agg, err = salesRepo.Load(gctx)
		return errors.Wrap(err, "load aggregate")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("loaded ledger state",
		slog.Int("orders", len(log)),
		slog.Int("dates", len(agg.ByDate)),
	)
	return writeExport(out, log, agg)
}

func openStorage(ctx context.Context, dataPath, databaseURL string) (order.Repository, sales.Repository, func(), error) {
	if databaseURL != "" {
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "create db pool")
		}
		return postgres.NewOrderRepository(pool), postgres.NewSalesRepository(pool), pool.Close, nil
	}

	store, err := bolt.Open(dataPath)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "open data file")
	}
	return bolt.NewOrderRepository(store), bolt.NewSalesRepository(store), func() { _ = store.Close() }, nil
}

func writeExport(out string, log []order.Order, agg *sales.Aggregate) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	f, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "create output file")
	}

	gz := pgzip.NewWriter(f)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("exportedAt")
	e.Str(time.Now().Format(time.RFC3339))

	e.FieldStart("stats")
	e.ObjStart()
	e.FieldStart("totalSales")
	e.Float64(agg.TotalSales.InexactFloat64())
	e.FieldStart("totalOrders")
	e.Int(agg.TotalOrders)
	e.ObjEnd()

	e.FieldStart("orders")
	e.ArrStart()
	for i := range log {
		encodeOrder(&e, &log[i])
	}
	e.ArrEnd()
	e.ObjEnd()

	if _, err := gz.Write(e.Bytes()); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write export")
	}
	if err := gz.Close(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "flush gzip")
	}
	return errors.Wrap(f.Close(), "close output file")
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(o.ID)
	e.FieldStart("total")
	e.Float64(o.Total.InexactFloat64())
	e.FieldStart("timestamp")
	e.Str(o.Timestamp)
	e.FieldStart("paymentMethod")
	e.Str(o.PaymentMethod)
	e.FieldStart("refunded")
	e.Bool(o.Refunded)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
