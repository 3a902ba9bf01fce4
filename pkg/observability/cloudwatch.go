package observability

import (
	"context"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// putTimeout bounds one PutMetricData call; metrics never hold up a request
// for longer.
const putTimeout = 2 * time.Second

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits business metrics when running in Lambda, where no
// scraper can reach /metrics.
type CloudWatchMetrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
	now       func() time.Time
}

var _ ports.Metrics = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a new CloudWatch metrics sink
func NewCloudWatchMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

func dimension(name, value string) types.Dimension {
	return types.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// RecordConsume counts a metered usage decision per kind
func (m *CloudWatchMetrics) RecordConsume(kind valueobjects.UsageKind, decision ledger.Decision) {
	outcome := "Allowed"
	if !decision.Allowed {
		outcome = "Denied"
	}
	m.put(types.MetricDatum{
		MetricName: aws.String("UsageDecision"),
		Dimensions: []types.Dimension{dimension("Kind", string(kind)), dimension("Outcome", outcome)},
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
	})
}

// RecordAnalysis records analysis latency by status
func (m *CloudWatchMetrics) RecordAnalysis(status string, took time.Duration) {
	m.put(types.MetricDatum{
		MetricName: aws.String("AnalysisLatency"),
		Dimensions: []types.Dimension{dimension("Status", status)},
		Value:      aws.Float64(float64(took.Milliseconds())),
		Unit:       types.StandardUnitMilliseconds,
	})
}

// RecordExport records export duration and a count by format and status
func (m *CloudWatchMetrics) RecordExport(format valueobjects.ExportFormat, status valueobjects.ExportStatus, took time.Duration) {
	dims := []types.Dimension{dimension("Format", string(format)), dimension("Status", string(status))}
	m.put(
		types.MetricDatum{
			MetricName: aws.String("ExportDuration"),
			Dimensions: dims,
			Value:      aws.Float64(float64(took.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
		},
		types.MetricDatum{
			MetricName: aws.String("ExportCount"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
		},
	)
}

func (m *CloudWatchMetrics) put(data ...types.MetricDatum) {
	if m.client == nil {
		return
	}
	ts := m.now()
	for i := range data {
		data[i].Timestamp = aws.Time(ts)
	}

	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	if _, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}); err != nil {
		// Metrics are best effort
		m.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}
