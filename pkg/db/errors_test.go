package db

import (
	"errors"
	"testing"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		err         error
		constraints []string
		want        bool
	}{
		{
			name:        "postgres named constraint",
			err:         errors.New(`ERROR: duplicate key value violates unique constraint "ux_webhook_events_provider_event" (SQLSTATE 23505)`),
			constraints: []string{"ux_webhook_events_provider_event", "webhook_events.provider_event_id"},
			want:        true,
		},
		{
			name:        "sqlite column list",
			err:         errors.New("UNIQUE constraint failed: webhook_events.provider_event_id"),
			constraints: []string{"ux_webhook_events_provider_event", "webhook_events.provider_event_id"},
			want:        true,
		},
		{
			name:        "violation on a different constraint",
			err:         errors.New(`ERROR: duplicate key value violates unique constraint "ux_outbox_events_event_aggregate" (SQLSTATE 23505)`),
			constraints: []string{"ux_webhook_events_provider_event", "webhook_events.provider_event_id"},
			want:        false,
		},
		{
			name:        "different sqlite constraint",
			err:         errors.New("UNIQUE constraint failed: outbox_events.event_type, outbox_events.aggregate_type, outbox_events.aggregate_id, outbox_events.version"),
			constraints: []string{"ux_webhook_events_provider_event", "webhook_events.provider_event_id"},
			want:        false,
		},
		{
			name:        "non-unique error mentioning the name",
			err:         errors.New("relation ux_webhook_events_provider_event does not exist"),
			constraints: []string{"ux_webhook_events_provider_event"},
			want:        false,
		},
		{
			name:        "no constraints given",
			err:         errors.New("UNIQUE constraint failed: carts.user_id"),
			constraints: nil,
			want:        false,
		},
		{
			name:        "nil error",
			err:         nil,
			constraints: []string{"ux_webhook_events_provider_event"},
			want:        false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsUniqueViolation(tc.err, tc.constraints...); got != tc.want {
				t.Fatalf("IsUniqueViolation = %v, want %v", got, tc.want)
			}
		})
	}
}
