package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	wrapped := sqlx.NewDb(db, "sqlite3")
	return New(wrapped), mock
}

func TestWrapErrKinds(t *testing.T) {
	if got := wrapErr(sql.ErrNoRows); !fault.IsNotFound(got) {
		t.Fatalf("no rows: want not found, got %v", got)
	}
	if got := wrapErr(context.DeadlineExceeded); got != fault.ErrTimeout {
		t.Fatalf("deadline: want timeout, got %v", got)
	}
	constraintErr := sqlite3.Error{Code: sqlite3.ErrConstraint}
	if got := wrapErr(constraintErr); !fault.IsConstraint(got) {
		t.Fatalf("constraint: want constraint kind, got %v", got)
	}
	if wrapErr(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestLimitDefaults(t *testing.T) {
	if got := limitOf(storage.Page{}); got != defaultLimit {
		t.Fatalf("zero page: want %d, got %d", defaultLimit, got)
	}
	if got := limitOf(storage.Page{Limit: 25}); got != 25 {
		t.Fatalf("explicit limit: got %d", got)
	}
}

func TestAddPromoUsesGuard(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	// Within the cap: the guarded update matches.
	mock.ExpectExec("UPDATE promos SET uses_count").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.AddPromoUses(ctx, 1, 1); err != nil {
		t.Fatalf("within cap: %v", err)
	}

	// Cap reached: zero rows, the promo exists, so the constraint surfaces.
	mock.ExpectExec("UPDATE promos SET uses_count").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM promos WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "shop_id", "code", "promo_type", "value", "min_order_amount",
			"max_uses", "uses_count", "valid_from", "valid_until", "is_active",
			"first_order_only", "created_at",
		}).AddRow(1, nil, "CAP", "percent", "10", nil, 1, 1,
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
			true, false,
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	err := st.AddPromoUses(ctx, 1, 1)
	if !fault.IsConstraint(err) {
		t.Fatalf("cap breach: want constraint, got %v", err)
	}

	// Missing promo: zero rows and the follow-up read finds nothing.
	mock.ExpectExec("UPDATE promos SET uses_count").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM promos WHERE id").
		WillReturnError(sql.ErrNoRows)
	if err := st.AddPromoUses(ctx, 9, 1); !fault.IsNotFound(err) {
		t.Fatalf("missing promo: want not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
