// Package metrics defines the OTel instruments exported by the journal's
// source state machine, scraped via the Prometheus reader pkg/telemetry wires up.
package metrics

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Journal holds the instruments a source machine reports against.
type Journal struct {
	QueriesIssued              metric.Int64Counter
	EnvelopesEmitted           metric.Int64Counter
	NotificationsReceived      metric.Int64Counter
	NotificationDecodeWarnings metric.Int64Counter
	ActiveSources              metric.Int64UpDownCounter
}

// New registers the journal instruments against meter.
func New(meter metric.Meter) (*Journal, error) {
	queriesIssued, err := meter.Int64Counter(
		"journal.queries_issued",
		metric.WithDescription("range reads issued against the store gateway"),
	)
	if err != nil {
		return nil, fmt.Errorf("queries_issued counter: %w", err)
	}

	envelopesEmitted, err := meter.Int64Counter(
		"journal.envelopes_emitted",
		metric.WithDescription("envelopes delivered to downstream consumers"),
	)
	if err != nil {
		return nil, fmt.Errorf("envelopes_emitted counter: %w", err)
	}

	notificationsReceived, err := meter.Int64Counter(
		"journal.notifications_received",
		metric.WithDescription("pub/sub notifications observed by live sources"),
	)
	if err != nil {
		return nil, fmt.Errorf("notifications_received counter: %w", err)
	}

	notificationDecodeWarnings, err := meter.Int64Counter(
		"journal.notification_decode_warnings",
		metric.WithDescription("malformed notification payloads dropped"),
	)
	if err != nil {
		return nil, fmt.Errorf("notification_decode_warnings counter: %w", err)
	}

	activeSources, err := meter.Int64UpDownCounter(
		"journal.active_sources",
		metric.WithDescription("sources currently alive"),
	)
	if err != nil {
		return nil, fmt.Errorf("active_sources counter: %w", err)
	}

	return &Journal{
		QueriesIssued:              queriesIssued,
		EnvelopesEmitted:           envelopesEmitted,
		NotificationsReceived:      notificationsReceived,
		NotificationDecodeWarnings: notificationDecodeWarnings,
		ActiveSources:              activeSources,
	}, nil
}
