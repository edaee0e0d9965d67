package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	usersRegistered metric.Int64Counter
	classesCreated  metric.Int64Counter
	joinsRequested  metric.Int64Counter
	messagesPosted  metric.Int64Counter
	blobsStored     metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.usersRegistered, err = meter.Int64Counter(
		"multichat.users.registered",
		metric.WithDescription("Total number of users registered"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}

	m.classesCreated, err = meter.Int64Counter(
		"multichat.classes.created",
		metric.WithDescription("Total number of classes created"),
		metric.WithUnit("{class}"),
	)
	if err != nil {
		return nil, err
	}

	m.joinsRequested, err = meter.Int64Counter(
		"multichat.classes.join_requests",
		metric.WithDescription("Total number of join requests received"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.messagesPosted, err = meter.Int64Counter(
		"multichat.messages.posted",
		metric.WithDescription("Total number of chat messages posted"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	m.blobsStored, err = meter.Int64Counter(
		"multichat.uploads.stored",
		metric.WithDescription("Total number of uploaded files stored"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordUserRegistered(ctx context.Context) {
	if m != nil && m.usersRegistered != nil {
		m.usersRegistered.Add(ctx, 1)
	}
}

func (m *Metrics) RecordClassCreated(ctx context.Context) {
	if m != nil && m.classesCreated != nil {
		m.classesCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordJoinRequested(ctx context.Context) {
	if m != nil && m.joinsRequested != nil {
		m.joinsRequested.Add(ctx, 1)
	}
}

func (m *Metrics) RecordMessagePosted(ctx context.Context) {
	if m != nil && m.messagesPosted != nil {
		m.messagesPosted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordBlobStored(ctx context.Context) {
	if m != nil && m.blobsStored != nil {
		m.blobsStored.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
