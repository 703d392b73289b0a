package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincheck/internal/types"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

type capturingSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (c *capturingSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.inputs = append(c.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

var (
	notifierNow = time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	alertDate   = time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)
)

const queueURL = "https://sqs.us-east-1.amazonaws.com/000000000000/raincheck-notices"

func decodeNotice(t *testing.T, input *sqs.SendMessageInput) NoticeMessage {
	t.Helper()
	require.NotNil(t, input.MessageBody)
	var msg NoticeMessage
	require.NoError(t, json.Unmarshal([]byte(*input.MessageBody), &msg))
	return msg
}

func TestNotifyWeatherReschedule(t *testing.T) {
	sender := &capturingSender{}
	notifier := NewSQSNotifier(sender, queueURL, &mockClock{now: notifierNow}, nil)

	suggested := time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)
	appt := &types.Appointment{
		ID: "apt_1",
		Assignments: []types.Assignment{
			{StaffID: "st_1", Role: types.RoleOperator},
			{StaffID: "st_2", Role: types.RoleSupervisor},
		},
	}
	alert := &types.RescheduleAlert{
		ID:        "alr_1",
		AlertDate: alertDate,
		Trigger:   types.TriggerHeavyRain,
		Reason:    "heavy rain expected",
		Payload:   types.AlertPayload{SuggestedDate: &suggested},
	}

	require.NoError(t, notifier.NotifyWeatherReschedule(context.Background(), appt, alert))
	require.Len(t, sender.inputs, 1)

	input := sender.inputs[0]
	assert.Equal(t, queueURL, *input.QueueUrl)
	require.Contains(t, input.MessageAttributes, "kind")
	assert.Equal(t, NoticeWeatherReschedule, *input.MessageAttributes["kind"].StringValue)

	msg := decodeNotice(t, input)
	assert.Equal(t, NoticeWeatherReschedule, msg.Kind)
	assert.NotEmpty(t, msg.TraceID)
	require.NotNil(t, msg.AppointmentID)
	assert.Equal(t, "apt_1", *msg.AppointmentID)
	assert.Equal(t, "alr_1", msg.AlertID)
	assert.Equal(t, "heavy_rain", msg.Trigger)
	require.NotNil(t, msg.SuggestedDate)
	assert.Equal(t, suggested, msg.SuggestedDate.UTC())
	assert.Equal(t, []string{"st_1", "st_2"}, msg.StaffIDs)
	assert.Equal(t, notifierNow, msg.SentAt.UTC())
}

func TestNotifyAlertDismissed(t *testing.T) {
	sender := &capturingSender{}
	notifier := NewSQSNotifier(sender, queueURL, &mockClock{now: notifierNow}, nil)

	appointmentID := "apt_1"
	alert := &types.RescheduleAlert{
		ID:            "alr_1",
		AppointmentID: &appointmentID,
		AlertDate:     alertDate,
		Reason:        "heavy rain expected",
	}

	require.NoError(t, notifier.NotifyAlertDismissed(context.Background(), alert, "dispatcher"))
	require.Len(t, sender.inputs, 1)

	msg := decodeNotice(t, sender.inputs[0])
	assert.Equal(t, NoticeAlertDismissed, msg.Kind)
	assert.Equal(t, "dispatcher", msg.ResolvedBy)
	assert.Empty(t, msg.StaffIDs)
}

func TestNotify_SendFailureReturnsError(t *testing.T) {
	sender := &capturingSender{err: errors.New("connection refused")}
	notifier := NewSQSNotifier(sender, queueURL, &mockClock{now: notifierNow}, nil)

	err := notifier.NotifyAlertDismissed(context.Background(), &types.RescheduleAlert{ID: "alr_1"}, "dispatcher")
	require.Error(t, err)
	assert.Contains(t, err.Error(), queueURL)
}
