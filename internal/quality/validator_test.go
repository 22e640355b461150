package quality_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/commerce-quality-etl/internal/domain"
	"github.com/couchcryptid/commerce-quality-etl/internal/quality"
)

var (
	str  = domain.StringValue
	num  = domain.NumberValue
	null = domain.NullValue
)

// orders returns ten distinct rows; the first nullRows have a null note.
func orders(nullRows int) domain.Dataset {
	rows := make([][]domain.Value, 10)
	for i := range rows {
		note := str("ok")
		if i < nullRows {
			note = null()
		}
		rows[i] = []domain.Value{num(float64(i + 1)), num(float64(10 * (i + 1))), note}
	}
	return domain.MustDataset([]string{"id", "quantity", "note"}, rows)
}

func checksOf(r quality.Report, kind quality.CheckKind) []quality.CheckResult {
	var out []quality.CheckResult
	for _, c := range r.Checks {
		if c.Check == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestRunAllChecks_EmptyBatteryScoresZero(t *testing.T) {
	v := quality.NewValidator(nil)

	report := v.RunAllChecks(domain.MustDataset(nil, nil), quality.DefaultConfig())

	assert.Empty(t, report.Checks)
	assert.Zero(t, report.Score)
}

func TestRunAllChecks_BatteryOrder(t *testing.T) {
	cfg := quality.Config{
		NullThreshold:   0.1,
		RequiredColumns: []string{"id"},
		ValueRanges:     []quality.Range{{Column: "quantity", Min: 0, Max: 1000}},
		MinRows:         1,
	}

	report := quality.NewValidator(nil).RunAllChecks(orders(0), cfg)

	var kinds []quality.CheckKind
	for _, c := range report.Checks {
		kinds = append(kinds, c.Check)
	}
	assert.Equal(t, []quality.CheckKind{
		quality.CheckNullPercentage, quality.CheckNullPercentage, quality.CheckNullPercentage,
		quality.CheckDuplicates,
		quality.CheckSchema,
		quality.CheckValueRange,
		quality.CheckRowCount,
	}, kinds)
	assert.Equal(t, 100.0, report.Score)
}

func TestCheckNulls_ThresholdIsInclusive(t *testing.T) {
	v := quality.NewValidator(nil)

	atThreshold := checksOf(v.RunAllChecks(orders(1), quality.DefaultConfig()), quality.CheckNullPercentage)
	require.Len(t, atThreshold, 3)
	assert.Equal(t, "note", atThreshold[2].Column)
	assert.InDelta(t, 0.1, atThreshold[2].Value, 1e-12)
	assert.True(t, atThreshold[2].Passed)

	above := checksOf(v.RunAllChecks(orders(2), quality.DefaultConfig()), quality.CheckNullPercentage)
	assert.False(t, above[2].Passed)
	assert.InDelta(t, 0.2, above[2].Value, 1e-12)
}

func TestCheckDuplicates(t *testing.T) {
	ds := domain.MustDataset([]string{"a"}, [][]domain.Value{{num(1)}, {num(1)}, {num(2)}, {num(3)}})

	report := quality.NewValidator(nil).RunAllChecks(ds, quality.DefaultConfig())

	dup := checksOf(report, quality.CheckDuplicates)
	require.Len(t, dup, 1)
	assert.False(t, dup[0].Passed)
	assert.Equal(t, quality.AllColumns, dup[0].Column)
	assert.InDelta(t, 0.25, dup[0].Value, 1e-12)
	assert.InDelta(t, 50.0, report.Score, 1e-9) // null check passes, duplicates fail
}

func TestCheckSchema_RecordsMissingSet(t *testing.T) {
	cfg := quality.DefaultConfig()
	cfg.RequiredColumns = []string{"id", "customer_id", "transaction_date"}

	schema := checksOf(quality.NewValidator(nil).RunAllChecks(orders(0), cfg), quality.CheckSchema)

	require.Len(t, schema, 1)
	assert.False(t, schema[0].Passed)
	assert.Equal(t, []string{"customer_id", "transaction_date"}, schema[0].Missing)
	assert.Equal(t, "all_required", schema[0].Threshold)
}

func TestCheckRanges(t *testing.T) {
	cfg := quality.DefaultConfig()
	cfg.ValueRanges = []quality.Range{
		{Column: "quantity", Min: 10, Max: 90},  // 100 is outside, 10 is on the bound
		{Column: "note", Min: 0, Max: 1},        // text, skipped
		{Column: "unit_price", Min: 0, Max: 1},  // absent, skipped
		{Column: "id", Min: 1, Max: 10},
	}

	ranges := checksOf(quality.NewValidator(nil).RunAllChecks(orders(0), cfg), quality.CheckValueRange)

	require.Len(t, ranges, 2)
	assert.Equal(t, "quantity", ranges[0].Column)
	assert.Equal(t, 1.0, ranges[0].Value)
	assert.False(t, ranges[0].Passed)
	assert.Equal(t, "10-90", ranges[0].Threshold)
	assert.Equal(t, "id", ranges[1].Column)
	assert.True(t, ranges[1].Passed)
}

func TestCheckRowCount(t *testing.T) {
	v := quality.NewValidator(nil)

	for _, tc := range []struct {
		name      string
		min, max  int
		passed    bool
		threshold string
	}{
		{"below minimum", 100, 0, false, "100-inf"},
		{"within bounds", 5, 10, true, "5-10"},
		{"above maximum", 0, 9, false, "0-9"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := quality.DefaultConfig()
			cfg.MinRows, cfg.MaxRows = tc.min, tc.max

			rc := checksOf(v.RunAllChecks(orders(0), cfg), quality.CheckRowCount)

			require.Len(t, rc, 1)
			assert.Equal(t, tc.passed, rc[0].Passed)
			assert.Equal(t, 10.0, rc[0].Value)
			assert.Equal(t, tc.threshold, rc[0].Threshold)
		})
	}
}

func TestRunAllChecks_EmptyRowsReportZeroPercent(t *testing.T) {
	ds := domain.MustDataset([]string{"a", "b"}, nil)

	report := quality.NewValidator(nil).RunAllChecks(ds, quality.DefaultConfig())

	require.Len(t, report.Checks, 3)
	for _, c := range report.Checks {
		assert.Zero(t, c.Value)
		assert.True(t, c.Passed)
	}
	assert.Equal(t, 100.0, report.Score)
}

func TestRunAllChecks_NoStateBetweenCalls(t *testing.T) {
	v := quality.NewValidator(nil)
	cfg := quality.DefaultConfig()
	cfg.MinRows = 1

	first := v.RunAllChecks(orders(5), cfg)
	second := v.RunAllChecks(domain.MustDataset([]string{"x"}, [][]domain.Value{{num(1)}}), cfg)

	assert.Len(t, first.Checks, 5)
	assert.Len(t, second.Checks, 3)
	assert.Equal(t, 100.0, second.Score)
}

func TestRunAllChecks_Timestamp(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })

	report := quality.NewValidator(nil).RunAllChecks(orders(0), quality.DefaultConfig())

	assert.Equal(t, at, report.Timestamp)
}

func TestScore(t *testing.T) {
	pass := quality.CheckResult{Passed: true}
	fail := quality.CheckResult{}

	assert.Zero(t, quality.Score(nil))
	assert.Equal(t, 100.0, quality.Score([]quality.CheckResult{pass, pass}))
	assert.Zero(t, quality.Score([]quality.CheckResult{fail}))
	assert.Equal(t, 66.67, quality.Score([]quality.CheckResult{pass, pass, fail}))

	many := make([]quality.CheckResult, 100000)
	for i := range many {
		many[i] = pass
	}
	many[0] = fail
	assert.Equal(t, 99.99, quality.Score(many), "a failing battery never scores 100")

	// 9999/10000 rounds to 99.99 without the clamp.
	assert.Equal(t, 99.99, quality.Score(many[:10000]))
}

func TestRunAllChecks_NoRequiredColumnsOmitsSchemaCheck(t *testing.T) {
	report := quality.NewValidator(nil).RunAllChecks(orders(0), quality.Config{NullThreshold: 0.1})

	for _, c := range report.Checks {
		assert.NotEqual(t, quality.CheckSchema, c.Check)
	}
}
