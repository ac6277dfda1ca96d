package storage

import (
	"bytes"
	"encoding/json"

	"report-assembler/internal/domain"
)

// ValidateUploadEvent checks the fields every backend requires before Append.
func ValidateUploadEvent(e *domain.UploadEvent) error {
	if e == nil || e.Alias == "" || e.ReportName == "" || e.PhysicalTable == "" {
		return ErrInvalidInput
	}
	if e.RowCount < 0 || e.ColCount < 0 || e.UploadedAt.IsZero() {
		return ErrInvalidInput
	}
	return nil
}

// ValidateVariable checks the fields every backend requires before Replace.
func ValidateVariable(v *domain.ReportVariable) error {
	if v == nil || v.ReportName == "" || v.ModuleName == "" || v.VarName == "" {
		return ErrInvalidInput
	}
	if len(v.Value) == 0 || !json.Valid(v.Value) {
		return ErrInvalidInput
	}
	return nil
}

// ValidateParam checks the fields every backend requires before Set.
func ValidateParam(p *domain.ReportParam) error {
	if p == nil || p.ReportName == "" || p.Key == "" {
		return ErrInvalidInput
	}
	if len(p.Value) == 0 || !json.Valid(p.Value) {
		return ErrInvalidInput
	}
	return nil
}

// ValidateDataset checks the fields every backend requires before Save.
func ValidateDataset(ds *domain.Dataset) error {
	if ds == nil || ds.Locator == "" {
		return ErrInvalidInput
	}
	return nil
}

// DecodeRow decodes a JSON row document. Numbers are kept as json.Number so
// amounts survive without float rounding.
func DecodeRow(data []byte) (domain.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var row domain.Row
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}
