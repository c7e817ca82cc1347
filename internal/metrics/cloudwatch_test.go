package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"fundingwatch/logger"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func withCloudWatch(t *testing.T, client putMetricDataAPI) {
	t.Helper()
	prev := cwState.Load()
	cwState.Store(&cloudWatchState{client: client, namespace: "FundingWatchTest"})
	t.Cleanup(func() { cwState.Store(prev) })

	resetMetricPublishTimes()
	t.Cleanup(resetMetricPublishTimes)

	originalInterval := cloudWatchPublishInterval
	cloudWatchPublishInterval = 50 * time.Millisecond
	t.Cleanup(func() { cloudWatchPublishInterval = originalInterval })
}

func TestPublishMetricDatumThrottlesToInterval(t *testing.T) {
	withCloudWatch(t, &fakeCloudWatch{})

	baseTime := time.Now()
	timeNow = func() time.Time { return baseTime }
	t.Cleanup(func() { timeNow = time.Now })

	batches := make([][]cwtypes.MetricDatum, 0)
	publishMetricsFunc = func(ctx context.Context, state *cloudWatchState, data []cwtypes.MetricDatum) {
		batches = append(batches, append([]cwtypes.MetricDatum(nil), data...))
	}
	t.Cleanup(func() { publishMetricsFunc = publishMetrics })

	metric := Metric{Component: "funding_cycle", Name: "records_fetched", Timestamp: baseTime, Fields: logger.Fields{"exchange": "okx", "unit": "count"}}
	publishMetricDatum(metric, 1)

	timeNow = func() time.Time { return baseTime.Add(25 * time.Millisecond) }
	publishMetricDatum(metric, 2)

	if len(batches) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(batches))
	}
	datum := batches[0][0]
	if aws.ToString(datum.MetricName) != "records_fetched" || aws.ToFloat64(datum.Value) != 1 {
		t.Fatalf("unexpected datum: %+v", datum)
	}
	if len(datum.Dimensions) != 2 || aws.ToString(datum.Dimensions[1].Name) != "exchange" {
		t.Fatalf("unexpected dimensions: %+v", datum.Dimensions)
	}

	timeNow = func() time.Time { return baseTime.Add(75 * time.Millisecond) }
	publishMetricDatum(metric, 3)
	if len(batches) != 2 || aws.ToFloat64(batches[1][0].Value) != 3 {
		t.Fatalf("expected second publish after interval, got %d batches", len(batches))
	}

	// a different dimension set is a different series
	other := metric
	other.Fields = logger.Fields{"exchange": "mexc"}
	publishMetricDatum(other, 4)
	if len(batches) != 3 {
		t.Fatalf("expected separate series to publish, got %d batches", len(batches))
	}
}

func TestEmitMetricPublishesNumericValues(t *testing.T) {
	fake := &fakeCloudWatch{}
	withCloudWatch(t, fake)

	EmitMetric(nil, "funding_cycle", "digests", 2, "gauge", logger.Fields{"unit": "count"})
	EmitMetric(nil, "funding_cycle", "label", "not a number", "gauge", nil)

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one PutMetricData call, got %d", len(fake.inputs))
	}
	if aws.ToString(fake.inputs[0].Namespace) != "FundingWatchTest" {
		t.Fatalf("unexpected namespace %v", fake.inputs[0].Namespace)
	}
}

func TestPublishWithoutClientIsNoop(t *testing.T) {
	prev := cwState.Load()
	cwState.Store(nil)
	t.Cleanup(func() { cwState.Store(prev) })

	called := false
	publishMetricsFunc = func(context.Context, *cloudWatchState, []cwtypes.MetricDatum) { called = true }
	t.Cleanup(func() { publishMetricsFunc = publishMetrics })

	publishMetricDatum(Metric{Name: "x"}, 1)
	if called {
		t.Fatal("publish attempted without a client")
	}
}
