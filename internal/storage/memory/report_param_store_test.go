package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

func TestReportParamStore_SetGetList(t *testing.T) {
	store := NewReportParamStore()
	ctx := context.Background()

	_ = store.Set(ctx, &domain.ReportParam{ReportName: "Q_TEST", Key: "TABLE_COLORS", Value: json.RawMessage(`["#fff"]`)})
	_ = store.Set(ctx, &domain.ReportParam{ReportName: "Q_TEST", Key: "CURRENCY", Value: json.RawMessage(`"EUR"`)})
	_ = store.Set(ctx, &domain.ReportParam{ReportName: "Q_TEST", Key: "CURRENCY", Value: json.RawMessage(`"USD"`)})

	got, err := store.Get(ctx, "Q_TEST", "CURRENCY")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Value) != `"USD"` {
		t.Errorf("expected USD, got %s", got.Value)
	}

	list, _ := store.List(ctx, "Q_TEST")
	if len(list) != 2 || list[0].Key != "CURRENCY" {
		t.Errorf("unexpected list: %+v", list)
	}

	if _, err := store.Get(ctx, "OTHER", "CURRENCY"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
