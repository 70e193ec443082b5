package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/emission-engine/internal/model"
)

// ErrNoTicks is returned when the requested day has no ticks.
var ErrNoTicks = errors.New("no ticks for trading day")

// TickSource reads one trading day's ticks in chronological order.
type TickSource interface {
	TicksForDay(ctx context.Context, ref time.Time) ([]model.PriceTick, error)
}

// Uploader stores an object.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Result describes an archived day.
type Result struct {
	Key   string
	Rows  int
	Bytes int
}

// Archiver exports trading days.
type Archiver struct {
	source      TickSource
	uploader    Uploader
	prefix      string
	compression string
	newID       func() uuid.UUID
	logger      *slog.Logger
}

// NewArchiver creates an Archiver writing under prefix.
func NewArchiver(source TickSource, uploader Uploader, prefix, compression string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		source:      source,
		uploader:    uploader,
		prefix:      prefix,
		compression: compression,
		newID:       uuid.New,
		logger:      logger,
	}
}

// ArchiveDay uploads the ticks of trading day ref.
func (a *Archiver) ArchiveDay(ctx context.Context, ref time.Time) (Result, error) {
	ticks, err := a.source.TicksForDay(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("read ticks: %w", err)
	}
	if len(ticks) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoTicks, dateKey(ref))
	}

	data, err := Encode(ticks, a.compression)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", dateKey(ref), err)
	}

	key := a.key(ref)
	start := time.Now()
	if err := a.uploader.Upload(ctx, key, data); err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", key, err)
	}

	a.logger.Info("archived trading day",
		"reference_date", dateKey(ref),
		"key", key,
		"rows", len(ticks),
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return Result{Key: key, Rows: len(ticks), Bytes: len(data)}, nil
}

func (a *Archiver) key(ref time.Time) string {
	return path.Join(a.prefix, "date="+dateKey(ref), a.newID().String()+".parquet")
}

func dateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
