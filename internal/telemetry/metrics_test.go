package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

type capturingClient struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (c *capturingClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.inputs = append(c.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestRecordEvaluation(t *testing.T) {
	client := &capturingClient{}
	publisher := NewPublisher(client, "RainCheck", nil)

	publisher.RecordEvaluation(context.Background(), types.TriggerHeavyRain, true)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "RainCheck", aws.ToString(input.Namespace))
	require.Len(t, input.MetricData, 1)

	datum := input.MetricData[0]
	assert.Equal(t, MetricEvaluation, aws.ToString(datum.MetricName))
	assert.Equal(t, 1.0, aws.ToFloat64(datum.Value))

	dims := map[string]string{}
	for _, d := range datum.Dimensions {
		dims[aws.ToString(d.Name)] = aws.ToString(d.Value)
	}
	assert.Equal(t, "heavy_rain", dims["Trigger"])
	assert.Equal(t, "true", dims["Simulated"])
}

func TestRecordAlertCreated(t *testing.T) {
	client := &capturingClient{}
	publisher := NewPublisher(client, "RainCheck", nil)

	publisher.RecordAlertCreated(context.Background(), false)

	require.Len(t, client.inputs, 1)
	datum := client.inputs[0].MetricData[0]
	assert.Equal(t, MetricAlertCreated, aws.ToString(datum.MetricName))
	require.Len(t, datum.Dimensions, 1)
	assert.Equal(t, "false", aws.ToString(datum.Dimensions[0].Value))
}

func TestRecordFetchLatency(t *testing.T) {
	client := &capturingClient{}
	publisher := NewPublisher(client, "RainCheck", nil)

	publisher.RecordFetchLatency(context.Background(), 250*time.Millisecond)

	require.Len(t, client.inputs, 1)
	datum := client.inputs[0].MetricData[0]
	assert.Equal(t, MetricFetchLatency, aws.ToString(datum.MetricName))
	assert.Equal(t, 250.0, aws.ToFloat64(datum.Value))
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	client := &capturingClient{err: errors.New("throttled")}
	publisher := NewPublisher(client, "RainCheck", nil)

	assert.NotPanics(t, func() {
		publisher.RecordEvaluation(context.Background(), types.TriggerAcceptable, false)
	})
}
