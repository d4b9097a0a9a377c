package mediasync

import (
	"context"
	"time"
)

type (
	// Activation is a monitoring campaign. Owned by the surrounding
	// application; this engine only reads them.
	Activation struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Status    string    `db:"status"`
		Persons   []string  `db:"-"`
		Keywords  []string  `db:"-"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	// Channel is a monitored media channel linked to an activation.
	//
	// Kind is loosely typed on purpose: providers emit either a name
	// ("tv", "youtube") or a small integer code ("0", "3") depending on
	// the endpoint, and both forms must be accepted.
	Channel struct {
		ID           string `db:"id"`
		ActivationID string `db:"activation_id"`
		ChannelID    string `db:"channel_id"`
		Kind         string `db:"channel_kind"`
		Title        string `db:"channel_title"`
	}

	ActivationDirectory interface {
		ListActive(ctx context.Context) ([]Activation, error)
		ListLinkedChannels(ctx context.Context, activationID string) ([]Channel, error)
	}
)

const (
	ActivationStatusActive   = "active"
	ActivationStatusInactive = "inactive"
)
