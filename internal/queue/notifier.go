// Package queue provides the SQS-based notification producer that hands
// reschedule and dismissal notices to the downstream messaging workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"raincheck/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Notice kinds carried in the message envelope.
const (
	NoticeWeatherReschedule = "weather_reschedule"
	NoticeAlertDismissed    = "alert_dismissed"
)

// NoticeMessage is the envelope placed on the notification queue. Downstream
// workers fan it out to the customer and the assigned staff.
type NoticeMessage struct {
	Kind          string     `json:"kind"`
	TraceID       string     `json:"trace_id"`
	AppointmentID *string    `json:"appointment_id,omitempty"`
	AlertID       string     `json:"alert_id"`
	AlertDate     time.Time  `json:"alert_date"`
	Trigger       string     `json:"trigger,omitempty"`
	Reason        string     `json:"reason"`
	SuggestedDate *time.Time `json:"suggested_date,omitempty"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	StaffIDs      []string   `json:"staff_ids,omitempty"`
	SentAt        time.Time  `json:"sent_at"`
}

// SQSNotifier implements types.Notifier over one SQS queue. Delivery failures
// are returned to the caller, which treats them as best effort.
type SQSNotifier struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewSQSNotifier creates an SQSNotifier for the given queue URL.
func NewSQSNotifier(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *SQSNotifier {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSNotifier{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

var _ types.Notifier = (*SQSNotifier)(nil)

// NotifyWeatherReschedule enqueues the reschedule notice for an appointment
// whose weather alert requires reprogramming.
func (n *SQSNotifier) NotifyWeatherReschedule(ctx context.Context, appointment *types.Appointment, alert *types.RescheduleAlert) error {
	staffIDs := make([]string, 0, len(appointment.Assignments))
	for _, a := range appointment.Assignments {
		staffIDs = append(staffIDs, a.StaffID)
	}

	appointmentID := appointment.ID
	return n.send(ctx, NoticeMessage{
		Kind:          NoticeWeatherReschedule,
		TraceID:       uuid.NewString(),
		AppointmentID: &appointmentID,
		AlertID:       alert.ID,
		AlertDate:     alert.AlertDate,
		Trigger:       string(alert.Trigger),
		Reason:        alert.Reason,
		SuggestedDate: alert.Payload.SuggestedDate,
		StaffIDs:      staffIDs,
		SentAt:        n.clock.Now(),
	})
}

// NotifyAlertDismissed enqueues the dismissal notice after an operator
// resolves an alert.
func (n *SQSNotifier) NotifyAlertDismissed(ctx context.Context, alert *types.RescheduleAlert, resolvedBy string) error {
	return n.send(ctx, NoticeMessage{
		Kind:          NoticeAlertDismissed,
		TraceID:       uuid.NewString(),
		AppointmentID: alert.AppointmentID,
		AlertID:       alert.ID,
		AlertDate:     alert.AlertDate,
		Reason:        alert.Reason,
		ResolvedBy:    resolvedBy,
		SentAt:        n.clock.Now(),
	})
}

// send serializes the notice to JSON and dispatches it to the queue.
func (n *SQSNotifier) send(ctx context.Context, msg NoticeMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal notice: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Kind),
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send notice to %s: %w", n.queueURL, err)
	}

	n.logger.InfoContext(ctx, "notice sent",
		"queue_url", n.queueURL,
		"kind", msg.Kind,
		"trace_id", msg.TraceID,
		"alert_id", msg.AlertID,
	)
	return nil
}
