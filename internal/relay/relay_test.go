package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/diftar2energyid/internal/energyid"
	"github.com/JakeFAU/diftar2energyid/internal/metrics"
	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

// MockRowSource mocks the RowSource interface.
type MockRowSource struct {
	mock.Mock
}

// Rows satisfies RowSource.
func (m *MockRowSource) Rows(ctx context.Context) ([]waste.RawRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]waste.RawRow)
	return rows, args.Error(1)
}

// MockPublisher mocks the BatchPublisher interface.
type MockPublisher struct {
	mock.Mock
}

// PublishBatch satisfies BatchPublisher.
func (m *MockPublisher) PublishBatch(ctx context.Context, batch waste.Batch) ([]energyid.Result, error) {
	args := m.Called(ctx, batch)
	results, _ := args.Get(0).([]energyid.Result)
	return results, args.Error(1)
}

type fixedID string

func (f fixedID) NewID() (string, error) { return string(f), nil }

type failingID struct{}

func (failingID) NewID() (string, error) { return "", errors.New("entropy exhausted") }

var exampleRows = []waste.RawRow{
	{"23/06/2022", "gewicht", "22/06/2022 GFT0040 100861301 1.0 kg", "<div class='cRight'>€ -0,10</div>"},
	{"16/06/2022", "gewicht", "15/06/2022 REST0120 100861302 0.0 kg", "<div class='cRight'>€ 0,00</div>"},
	{"30/06/2022", "gewicht", "29/06/2022 GFT0040 100861301 3.5 kg", "<div class='cRight'>€ -0,35</div>"},
}

func TestRunPublishesAggregatedBatch(t *testing.T) {
	t.Parallel()

	source := &MockRowSource{}
	source.On("Rows", mock.Anything).Return(exampleRows, nil).Once()

	results := []energyid.Result{
		{Category: waste.GFT, Outcome: energyid.OutcomeDelivered, Count: 2},
		{Category: waste.REST, Outcome: energyid.OutcomeUnconfigured},
	}
	publisher := &MockPublisher{}
	publisher.On("PublishBatch", mock.Anything, mock.MatchedBy(func(b waste.Batch) bool {
		gft := b.Get(waste.GFT)
		return b.Len() == 3 && len(gft) == 2 && gft[0].Date.Day == 22 && gft[1].Date.Day == 29
	})).Return(results, nil).Once()

	recorder, err := metrics.New()
	require.NoError(t, err)

	core, logs := observer.New(zapcore.InfoLevel)
	report, err := New(Config{}, source, publisher, recorder, fixedID("run-1"), zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, map[waste.Category]int{waste.GFT: 2, waste.REST: 1}, report.Measurements)
	assert.Equal(t, results, report.Results)
	assert.Equal(t, 2, report.Delivered())

	source.AssertExpectations(t)
	publisher.AssertExpectations(t)

	expected := `
# HELP diftar_rows_fetched_total Rows read from the portal listing.
# TYPE diftar_rows_fetched_total counter
diftar_rows_fetched_total 3
# HELP diftar_measurements_total Parsed measurements partitioned by waste category.
# TYPE diftar_measurements_total counter
diftar_measurements_total{category="GFT"} 2
diftar_measurements_total{category="REST"} 1
# HELP energyid_deliveries_total Category outcomes partitioned by category and outcome.
# TYPE energyid_deliveries_total counter
energyid_deliveries_total{category="GFT",outcome="delivered"} 1
energyid_deliveries_total{category="REST",outcome="unconfigured"} 1
`
	require.NoError(t, testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected),
		"diftar_rows_fetched_total", "diftar_measurements_total", "energyid_deliveries_total"))
	require.NotEmpty(t, logs.All())
	for _, entry := range logs.All() {
		assert.Equal(t, "run-1", entry.ContextMap()["run_id"], entry.Message)
	}
}

func TestRunAbortsOnMalformedRowBeforePublishing(t *testing.T) {
	t.Parallel()

	rows := append([]waste.RawRow{}, exampleRows...)
	rows = append(rows, waste.RawRow{"23/06/2022", "gewicht", "2022/06/22 GFT0040 100861301 1.0 kg", ""})

	source := &MockRowSource{}
	source.On("Rows", mock.Anything).Return(rows, nil).Once()
	publisher := &MockPublisher{}

	report, err := New(Config{}, source, publisher, nil, fixedID("run-2"), nil).Run(context.Background())
	require.Error(t, err)

	var parseErr *waste.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, rows[3], parseErr.Row)
	assert.Equal(t, 4, report.Rows)
	publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestRunPropagatesSourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("portal down")
	source := &MockRowSource{}
	source.On("Rows", mock.Anything).Return(nil, boom).Once()
	publisher := &MockPublisher{}

	recorder, err := metrics.New()
	require.NoError(t, err)

	_, err = New(Config{}, source, publisher, recorder, fixedID("run-3"), nil).Run(context.Background())
	require.ErrorIs(t, err, boom)
	publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)

	expected := `
# HELP diftar2energyid_runs_total Runs partitioned by result.
# TYPE diftar2energyid_runs_total counter
diftar2energyid_runs_total{result="failure"} 1
`
	require.NoError(t, testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "diftar2energyid_runs_total"))
}

func TestRunKeepsPartialResultsOnDeliveryError(t *testing.T) {
	t.Parallel()

	source := &MockRowSource{}
	source.On("Rows", mock.Anything).Return(exampleRows, nil).Once()

	deliveryErr := &energyid.DeliveryError{Category: waste.GFT, URL: "https://hooks.example/in", StatusCode: 500}
	partial := []energyid.Result{{Category: waste.GFT, Outcome: energyid.OutcomeFailed, Count: 2}}
	publisher := &MockPublisher{}
	publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(partial, deliveryErr).Once()

	report, err := New(Config{}, source, publisher, nil, fixedID("run-4"), nil).Run(context.Background())
	var target *energyid.DeliveryError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, partial, report.Results)
	assert.Zero(t, report.Delivered())
}

func TestRunFailsWithoutRunID(t *testing.T) {
	t.Parallel()

	source := &MockRowSource{}
	_, err := New(Config{}, source, &MockPublisher{}, nil, failingID{}, nil).Run(context.Background())
	require.Error(t, err)
	source.AssertNotCalled(t, "Rows", mock.Anything)
}

func TestInspectKeepsGoingPastBadRows(t *testing.T) {
	t.Parallel()

	rows := []waste.RawRow{
		exampleRows[0],
		{"23/06/2022", "gewicht", "garbage", "<div class='cRight'>€ 1,00</div>"},
		{"16/06/2022", "gewicht", "15/06/2022 REST0120 100861302 0.0 kg"},
	}
	source := &MockRowSource{}
	source.On("Rows", mock.Anything).Return(rows, nil).Once()

	got, err := Inspect(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.NoError(t, got[0].Err)
	assert.Equal(t, waste.GFT, got[0].Category)
	assert.True(t, got[0].HasFee)
	assert.Equal(t, "-0.1", got[0].Fee.String())

	assert.ErrorIs(t, got[1].Err, waste.ErrNoMatch)
	assert.True(t, got[1].HasFee)

	assert.NoError(t, got[2].Err)
	assert.Equal(t, waste.REST, got[2].Category)
	assert.False(t, got[2].HasFee)
}

type steppingClock struct {
	times []time.Time
}

func (c *steppingClock) Now() time.Time {
	now := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return now
}

func TestRunRecordsDurationAndLastSuccess(t *testing.T) {
	t.Parallel()

	source := &MockRowSource{}
	source.On("Rows", mock.Anything).Return([]waste.RawRow{}, nil).Once()
	publisher := &MockPublisher{}
	publisher.On("PublishBatch", mock.Anything, mock.Anything).Return([]energyid.Result{}, nil).Once()

	recorder, err := metrics.New()
	require.NoError(t, err)

	start := time.Date(2022, 6, 23, 7, 0, 0, 0, time.UTC)
	runner := New(Config{}, source, publisher, recorder, fixedID("run-3"), zap.NewNop())
	runner.clock = &steppingClock{times: []time.Time{start, start.Add(1500 * time.Millisecond)}}

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	expected := `
# HELP diftar2energyid_run_duration_seconds Wall time of the last run.
# TYPE diftar2energyid_run_duration_seconds gauge
diftar2energyid_run_duration_seconds 1.5
# HELP diftar2energyid_last_success_timestamp_seconds Unix time of the last successful run.
# TYPE diftar2energyid_last_success_timestamp_seconds gauge
diftar2energyid_last_success_timestamp_seconds 1.655967601e+09
`
	require.NoError(t, testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected),
		"diftar2energyid_run_duration_seconds", "diftar2energyid_last_success_timestamp_seconds"))
}

func TestDefaultClockIsUTC(t *testing.T) {
	t.Parallel()

	runner := New(Config{}, &MockRowSource{}, &MockPublisher{}, nil, fixedID("run-4"), nil)
	assert.Equal(t, time.UTC, runner.clock.Now().Location())

	fixed := time.Date(2022, 6, 23, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, ClockFunc(func() time.Time { return fixed }).Now())
}
