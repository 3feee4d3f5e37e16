package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

func runHealth(t *testing.T, checks ...Check) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := HealthHandler(checks...)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestHealthHandler_AllUp(t *testing.T) {
	code, body := runHealth(t,
		Check{Name: "database", Pinger: PingFunc(up), Required: true},
		Check{Name: "redis", Pinger: PingFunc(up)},
	)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
}

func TestHealthHandler_OptionalDown(t *testing.T) {
	code, body := runHealth(t,
		Check{Name: "database", Pinger: PingFunc(up), Required: true},
		Check{Name: "redis", Pinger: PingFunc(down)},
	)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", body["status"])
	}
	redis := body["components"].(map[string]interface{})["redis"].(map[string]interface{})
	if redis["status"] != "down" || redis["error"] != "connection refused" {
		t.Errorf("unexpected redis component: %v", redis)
	}
}

func TestHealthHandler_RequiredDown(t *testing.T) {
	code, body := runHealth(t,
		Check{Name: "database", Pinger: PingFunc(down), Required: true},
		Check{Name: "redis", Pinger: PingFunc(down)},
	)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected unhealthy, got %v", body["status"])
	}
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx    *fakeTx
	calls int
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	b.calls++
	return b.tx, nil
}

func TestInTx_Commit(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	err := InTx(context.Background(), b, func(ctx context.Context) error {
		if TxFromContext(ctx) == nil {
			t.Error("expected transaction in context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if !b.tx.committed || b.tx.rolledBack {
		t.Errorf("expected commit only, got %+v", b.tx)
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	want := errors.New("boom")
	err := InTx(context.Background(), b, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if b.tx.committed || !b.tx.rolledBack {
		t.Errorf("expected rollback only, got %+v", b.tx)
	}
}

func TestInTx_Nested(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	err := InTx(context.Background(), b, func(ctx context.Context) error {
		return InTx(ctx, b, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if b.calls != 1 {
		t.Errorf("expected 1 Begin, got %d", b.calls)
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if TxFromContext(ctx) != nil {
		t.Error("expected nil when context value is wrong type")
	}
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil tx from empty context")
	}
}
