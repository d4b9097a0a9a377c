package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radarhq/mediasync/internal/mediasync"
)

const (
	activationNamespace = "-actv"
	channelNamespace    = "-chan"
)

type activationRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Status    string    `db:"status"`
	Persons   string    `db:"persons"`
	Keywords  string    `db:"keywords"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r Repo) ListActive(ctx context.Context) ([]mediasync.Activation, error) {
	const q = `SELECT * FROM activations WHERE status = ? ORDER BY created_at;`

	var rows []activationRow
	if err := r.db.SelectContext(ctx, &rows, q, mediasync.ActivationStatusActive); err != nil {
		return nil, fmt.Errorf("error selecting active activations: %s", err)
	}

	activations := make([]mediasync.Activation, 0, len(rows))
	for _, row := range rows {
		a := mediasync.Activation{
			ID:        row.ID,
			Name:      row.Name,
			Status:    row.Status,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
		if err := json.Unmarshal([]byte(row.Persons), &a.Persons); err != nil {
			return nil, fmt.Errorf("error unmarshaling persons for %s: %s", row.ID, err)
		}
		if err := json.Unmarshal([]byte(row.Keywords), &a.Keywords); err != nil {
			return nil, fmt.Errorf("error unmarshaling keywords for %s: %s", row.ID, err)
		}
		activations = append(activations, a)
	}

	return activations, nil
}

func (r Repo) ListLinkedChannels(ctx context.Context, activationID string) ([]mediasync.Channel, error) {
	const q = `SELECT * FROM activation_channels WHERE activation_id = ? ORDER BY rowid;`

	var channels []mediasync.Channel
	if err := r.db.SelectContext(ctx, &channels, q, activationID); err != nil {
		return nil, fmt.Errorf("error selecting linked channels: %s", err)
	}

	return channels, nil
}

// CreateActivation registers a monitoring campaign. The surrounding
// application usually owns this table; the method exists so the worker can
// be seeded and run on its own.
func (r Repo) CreateActivation(ctx context.Context, name string, persons, keywords []string) (mediasync.Activation, error) {
	personsJSON, err := json.Marshal(sliceOrEmpty(persons))
	if err != nil {
		return mediasync.Activation{}, fmt.Errorf("error marshaling persons: %s", err)
	}
	keywordsJSON, err := json.Marshal(sliceOrEmpty(keywords))
	if err != nil {
		return mediasync.Activation{}, fmt.Errorf("error marshaling keywords: %s", err)
	}

	id := fmt.Sprintf("%s%s", uuid.NewString(), activationNamespace)
	const q = `INSERT INTO activations (id, name, status, persons, keywords) VALUES (?, ?, ?, ?, ?);`
	if _, err := r.db.ExecContext(ctx, q, id, name, mediasync.ActivationStatusActive, string(personsJSON), string(keywordsJSON)); err != nil {
		return mediasync.Activation{}, fmt.Errorf("error inserting activation: %s", err)
	}

	return mediasync.Activation{
		ID:       id,
		Name:     name,
		Status:   mediasync.ActivationStatusActive,
		Persons:  persons,
		Keywords: keywords,
	}, nil
}

// LinkChannel attaches a monitored channel to an activation.
func (r Repo) LinkChannel(ctx context.Context, activationID, channelID, kind, title string) error {
	id := fmt.Sprintf("%s%s", uuid.NewString(), channelNamespace)
	const q = `INSERT INTO activation_channels (id, activation_id, channel_id, channel_kind, channel_title) VALUES (?, ?, ?, ?, ?);`
	if _, err := r.db.ExecContext(ctx, q, id, activationID, channelID, kind, title); err != nil {
		return fmt.Errorf("error linking channel: %s", err)
	}

	return nil
}
