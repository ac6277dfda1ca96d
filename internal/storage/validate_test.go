package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"report-assembler/internal/domain"
)

func TestValidateUploadEvent(t *testing.T) {
	valid := domain.UploadEvent{
		Alias:         "sales",
		ReportName:    "Q_TEST",
		PhysicalTable: "sales_v1",
		UploadedAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := ValidateUploadEvent(&valid); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := map[string]func(e *domain.UploadEvent){
		"missing alias":   func(e *domain.UploadEvent) { e.Alias = "" },
		"missing report":  func(e *domain.UploadEvent) { e.ReportName = "" },
		"missing table":   func(e *domain.UploadEvent) { e.PhysicalTable = "" },
		"negative rows":   func(e *domain.UploadEvent) { e.RowCount = -1 },
		"zero timestamp":  func(e *domain.UploadEvent) { e.UploadedAt = time.Time{} },
		"negative column": func(e *domain.UploadEvent) { e.ColCount = -3 },
	}
	for name, mutate := range cases {
		e := valid
		mutate(&e)
		if err := ValidateUploadEvent(&e); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}

	if err := ValidateUploadEvent(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil: expected ErrInvalidInput, got %v", err)
	}
}

func TestValidateVariable(t *testing.T) {
	v := &domain.ReportVariable{ReportName: "R", ModuleName: "m", VarName: "x", Value: json.RawMessage(`{"a":1}`)}
	if err := ValidateVariable(v); err != nil {
		t.Fatalf("valid variable rejected: %v", err)
	}

	v.Value = json.RawMessage(`{broken`)
	if err := ValidateVariable(v); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for invalid JSON, got %v", err)
	}
}

func TestValidateParam(t *testing.T) {
	if err := ValidateParam(&domain.ReportParam{ReportName: "R", Key: "k", Value: json.RawMessage(`"v"`)}); err != nil {
		t.Fatalf("valid param rejected: %v", err)
	}
	if err := ValidateParam(&domain.ReportParam{ReportName: "R", Value: json.RawMessage(`1`)}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing key, got %v", err)
	}
}
