// Package telemetry publishes evaluation metrics to AWS CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"raincheck/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metric and dimension names.
const (
	MetricEvaluation   = "WeatherEvaluation"
	MetricAlertCreated = "RescheduleAlertCreated"
	MetricFetchLatency = "ForecastFetchLatency"
	dimTrigger         = "Trigger"
	dimSimulated       = "Simulated"
)

// Publisher emits evaluation metrics to one CloudWatch namespace. Publish
// failures are logged and swallowed; metrics never fail an evaluation.
type Publisher struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewPublisher creates a Publisher for the given namespace.
func NewPublisher(client CloudWatchClient, namespace string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordEvaluation emits one WeatherEvaluation count with the decision
// trigger and simulation flag as dimensions.
func (p *Publisher) RecordEvaluation(ctx context.Context, trigger types.DecisionTrigger, simulated bool) {
	p.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(MetricEvaluation),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimTrigger), Value: aws.String(string(trigger))},
			{Name: aws.String(dimSimulated), Value: aws.String(boolValue(simulated))},
		},
	})
}

// RecordAlertCreated emits one RescheduleAlertCreated count.
func (p *Publisher) RecordAlertCreated(ctx context.Context, simulated bool) {
	p.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(MetricAlertCreated),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimSimulated), Value: aws.String(boolValue(simulated))},
		},
	})
}

// RecordFetchLatency emits the wall time of one provider fetch in
// milliseconds.
func (p *Publisher) RecordFetchLatency(ctx context.Context, duration time.Duration) {
	p.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(MetricFetchLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (p *Publisher) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		p.logger.WarnContext(ctx, "failed to publish metric",
			"metric", aws.ToString(datum.MetricName),
			"error", err,
		)
	}
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
