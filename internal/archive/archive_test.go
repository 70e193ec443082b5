package archive

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
)

type fakeSource struct {
	ticks []model.PriceTick
	err   error
}

func (s fakeSource) TicksForDay(ctx context.Context, ref time.Time) ([]model.PriceTick, error) {
	return s.ticks, s.err
}

type fakeUploader struct {
	key  string
	body []byte
	err  error
}

func (u *fakeUploader) Upload(ctx context.Context, key string, body []byte) error {
	u.key = key
	u.body = body
	return u.err
}

func sampleTicks(ref time.Time, n int) []model.PriceTick {
	ticks := make([]model.PriceTick, n)
	for i := range ticks {
		p := decimal.NewFromFloat(13 + float64(i)/100)
		ticks[i] = model.PriceTick{
			ID:            int64(i + 1),
			Price:         p,
			High:          p.Add(decimal.RequireFromString("0.1")),
			Low:           p.Sub(decimal.RequireFromString("0.1")),
			Average:       p,
			ReferenceDate: ref,
			Timestamp:     ref.Add(15*time.Hour + time.Duration(i)*3*time.Second),
		}
	}
	return ticks
}

func TestArchiveDay(t *testing.T) {
	ref := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	id := uuid.MustParse("6f1c2a3e-1d2b-4c5d-8e9f-0a1b2c3d4e5f")
	up := &fakeUploader{}

	a := NewArchiver(fakeSource{ticks: sampleTicks(ref, 25)}, up, "ticks", "snappy", nil)
	a.newID = func() uuid.UUID { return id }

	res, err := a.ArchiveDay(context.Background(), ref)
	if err != nil {
		t.Fatalf("ArchiveDay() error = %v", err)
	}

	wantKey := "ticks/date=2024-03-10/6f1c2a3e-1d2b-4c5d-8e9f-0a1b2c3d4e5f.parquet"
	if res.Key != wantKey || up.key != wantKey {
		t.Errorf("key = %q (uploaded %q), want %q", res.Key, up.key, wantKey)
	}
	if res.Rows != 25 {
		t.Errorf("Rows = %d, want 25", res.Rows)
	}
	if res.Bytes != len(up.body) {
		t.Errorf("Bytes = %d, uploaded %d", res.Bytes, len(up.body))
	}
	if !bytes.HasPrefix(up.body, []byte("PAR1")) || !bytes.HasSuffix(up.body, []byte("PAR1")) {
		t.Error("uploaded object is not a parquet file")
	}
}

func TestArchiveDay_Errors(t *testing.T) {
	ref := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	readErr := errors.New("db down")
	uploadErr := errors.New("access denied")

	tests := []struct {
		name    string
		source  fakeSource
		upErr   error
		wantErr error
	}{
		{"empty day", fakeSource{}, nil, ErrNoTicks},
		{"read failure", fakeSource{err: readErr}, nil, readErr},
		{"upload failure", fakeSource{ticks: sampleTicks(ref, 2)}, uploadErr, uploadErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArchiver(tt.source, &fakeUploader{err: tt.upErr}, "ticks", "none", nil)
			if _, err := a.ArchiveDay(context.Background(), ref); !errors.Is(err, tt.wantErr) {
				t.Errorf("ArchiveDay() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncode_Compression(t *testing.T) {
	ticks := sampleTicks(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 10)

	for _, c := range []string{"snappy", "gzip", "none"} {
		t.Run(c, func(t *testing.T) {
			data, err := Encode(ticks, c)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.HasPrefix(data, []byte("PAR1")) {
				t.Error("missing parquet magic")
			}
		})
	}

	if _, err := Encode(ticks, "brotli"); err == nil {
		t.Error("Encode() expected error for unsupported compression")
	}
}
