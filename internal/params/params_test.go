package params

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"report-assembler/internal/storage/memory"
)

func TestParams_SetGet(t *testing.T) {
	p := New(memory.NewReportParamStore())
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "Q_TEST", KeyTableColors, []string{"#003366", "#ffffff"}))

	var colors []string
	ok, err := p.Get(ctx, "Q_TEST", KeyTableColors, &colors)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"#003366", "#ffffff"}, colors)
}

func TestParams_GetMissing(t *testing.T) {
	p := New(memory.NewReportParamStore())

	currency := "EUR"
	ok, err := p.Get(context.Background(), "Q_TEST", KeyCurrency, &currency)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "EUR", currency, "default must survive a missing param")
}

func TestParams_GetWrongType(t *testing.T) {
	p := New(memory.NewReportParamStore())
	ctx := context.Background()
	require.NoError(t, p.Set(ctx, "Q_TEST", KeyCurrency, "EUR"))

	var n int
	_, err := p.Get(ctx, "Q_TEST", KeyCurrency, &n)
	assert.Error(t, err)
}

func TestParams_Load(t *testing.T) {
	p := New(memory.NewReportParamStore())
	ctx := context.Background()
	require.NoError(t, p.Set(ctx, "Q_TEST", KeyCurrency, "EUR"))
	require.NoError(t, p.Set(ctx, "Q_TEST", KeyTotalColumns, []string{"amount"}))

	all, err := p.Load(ctx, "Q_TEST")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.JSONEq(t, `"EUR"`, string(all[KeyCurrency]))
}
