package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

var readCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

func newMockPG(t *testing.T) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool() error = %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPG(mock, nil), mock
}

func expectMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPG_ReserveSupply(t *testing.T) {
	tests := []struct {
		name          string
		rows          [][]any
		wantGranted   string
		wantRemaining string
		wantErr       error
	}{
		{"full grant", [][]any{{d("0.15"), d("99.85")}}, "0.15", "99.85", nil},
		{"partial grant", [][]any{{d("0.05"), d("0")}}, "0.05", "0", nil},
		{"exhausted", nil, "0", "0", model.ErrSupplyExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg, mock := newMockPG(t)

			mock.ExpectBeginTx(readCommitted)
			mock.ExpectQuery(`WITH reservation`).
				WithArgs(d("0.15")).
				WillReturnRows(mock.NewRows([]string{"amount", "remaining"}).AddRows(tt.rows...))
			if tt.wantErr != nil {
				mock.ExpectRollback()
			} else {
				mock.ExpectCommit()
			}

			var granted, remaining decimal.Decimal
			err := pg.WithinClaim(context.Background(), "alice", func(tx mining.ClaimTx) error {
				var err error
				granted, remaining, err = tx.ReserveSupply(context.Background(), d("0.15"))
				return err
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("WithinClaim() error = %v, want %v", err, tt.wantErr)
			}
			if !granted.Equal(d(tt.wantGranted)) || !remaining.Equal(d(tt.wantRemaining)) {
				t.Errorf("granted/remaining = %s/%s, want %s/%s", granted, remaining, tt.wantGranted, tt.wantRemaining)
			}
			expectMet(t, mock)
		})
	}
}

func TestPG_ProfileCreatesAndLocks(t *testing.T) {
	pg, mock := newMockPG(t)

	mock.ExpectBeginTx(readCommitted)
	mock.ExpectExec(`INSERT INTO mining_profiles`).
		WithArgs("alice", newProfileEligibleAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM mining_profiles\s+WHERE user_id = \$1\s+FOR UPDATE`).
		WithArgs("alice").
		WillReturnRows(mock.NewRows([]string{"last_claim_at", "next_eligible_at"}).AddRow(nil, newProfileEligibleAt))
	mock.ExpectCommit()

	var got model.MiningProfile
	err := pg.WithinClaim(context.Background(), "alice", func(tx mining.ClaimTx) error {
		var err error
		got, err = tx.Profile(context.Background())
		return err
	})
	if err != nil {
		t.Fatalf("WithinClaim() error = %v", err)
	}
	if got.UserID != "alice" || got.LastClaimAt != nil || !got.NextEligibleAt.Equal(newProfileEligibleAt) {
		t.Errorf("Profile() = %+v, want new eligible profile", got)
	}
	expectMet(t, mock)
}

func TestPG_InsertTick(t *testing.T) {
	ts := time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC)
	tick := model.PriceTick{
		Price:         d("13.1"),
		High:          d("13.3"),
		Low:           d("12.9"),
		Average:       d("13.1"),
		ReferenceDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Timestamp:     ts,
	}

	tests := []struct {
		name    string
		rows    [][]any
		wantID  int64
		wantErr error
	}{
		{"newer timestamp", [][]any{{int64(7)}}, 7, nil},
		{"stale timestamp", nil, 0, model.ErrStaleTick},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg, mock := newMockPG(t)

			mock.ExpectBeginTx(readCommitted)
			mock.ExpectExec(`pg_advisory_xact_lock`).
				WithArgs(tickLockKey).
				WillReturnResult(pgxmock.NewResult("SELECT", 1))
			mock.ExpectQuery(`INSERT INTO price_ticks .* WHERE NOT EXISTS`).
				WithArgs(tick.Price, tick.High, tick.Low, tick.Average, tick.ReferenceDate, ts).
				WillReturnRows(mock.NewRows([]string{"id"}).AddRows(tt.rows...))
			if tt.wantErr != nil {
				mock.ExpectRollback()
			} else {
				mock.ExpectCommit()
			}

			var got model.PriceTick
			err := pg.WithinTick(context.Background(), func(tx price.TickTx) error {
				var err error
				got, err = tx.InsertTick(context.Background(), tick)
				return err
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("WithinTick() error = %v, want %v", err, tt.wantErr)
			}
			if got.ID != tt.wantID {
				t.Errorf("ID = %d, want %d", got.ID, tt.wantID)
			}
			expectMet(t, mock)
		})
	}
}

func TestPG_RetriesSerializationFailures(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantCalls int
		wantErr   bool
	}{
		{"deadlock", "40P01", 1, false},
		{"serialization failure", "40001", 1, false},
		{"unique violation", "23505", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg, mock := newMockPG(t)

			mock.ExpectBeginTx(readCommitted)
			mock.ExpectExec(`pg_advisory_xact_lock`).
				WithArgs(tickLockKey).
				WillReturnError(&pgconn.PgError{Code: tt.code})
			mock.ExpectRollback()
			if !tt.wantErr {
				mock.ExpectBeginTx(readCommitted)
				mock.ExpectExec(`pg_advisory_xact_lock`).
					WithArgs(tickLockKey).
					WillReturnResult(pgxmock.NewResult("SELECT", 1))
				mock.ExpectCommit()
			}

			calls := 0
			err := pg.WithinTick(context.Background(), func(price.TickTx) error {
				calls++
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("WithinTick() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("fn calls = %d, want %d", calls, tt.wantCalls)
			}
			expectMet(t, mock)
		})
	}
}

func TestPG_WithinClaimRollsBackOnError(t *testing.T) {
	pg, mock := newMockPG(t)

	mock.ExpectBeginTx(readCommitted)
	mock.ExpectRollback()

	err := pg.WithinClaim(context.Background(), "alice", func(mining.ClaimTx) error {
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("WithinClaim() error = %v, want errAbort", err)
	}
	expectMet(t, mock)
}

func TestPG_DailyTarget(t *testing.T) {
	ref := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	cols := []string{"reference_date", "opening_price", "target_price", "closing_price"}

	t.Run("found", func(t *testing.T) {
		pg, mock := newMockPG(t)
		mock.ExpectQuery(`FROM daily_price_targets`).
			WithArgs(ref).
			WillReturnRows(mock.NewRows(cols).AddRow(ref, d("13"), d("14"), nil))

		got, err := pg.DailyTarget(context.Background(), ref)
		if err != nil {
			t.Fatalf("DailyTarget() error = %v", err)
		}
		if !got.OpeningPrice.Equal(d("13")) || !got.TargetPrice.Equal(d("14")) {
			t.Errorf("opening/target = %s/%s, want 13/14", got.OpeningPrice, got.TargetPrice)
		}
		if got.ClosingPrice != nil {
			t.Errorf("ClosingPrice = %v, want nil", got.ClosingPrice)
		}
		expectMet(t, mock)
	})

	t.Run("missing", func(t *testing.T) {
		pg, mock := newMockPG(t)
		mock.ExpectQuery(`FROM daily_price_targets`).
			WithArgs(ref).
			WillReturnRows(mock.NewRows(cols))

		if _, err := pg.DailyTarget(context.Background(), ref); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("DailyTarget() error = %v, want ErrNotFound", err)
		}
		expectMet(t, mock)
	})
}

func TestPG_LatestTickEmpty(t *testing.T) {
	pg, mock := newMockPG(t)
	mock.ExpectQuery(`FROM price_ticks`).
		WillReturnRows(mock.NewRows([]string{"id", "price", "high", "low", "average", "reference_date", "created_at"}))

	if _, err := pg.LatestTick(context.Background()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("LatestTick() error = %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}
