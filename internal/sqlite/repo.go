// Package sqlite implements the engine's persistence interfaces on a
// relational store accessed through sqlx.
package sqlite

import (
	"github.com/jmoiron/sqlx"

	"github.com/radarhq/mediasync/internal/mediasync"
)

// Ensure Repo implements the persistence interfaces the engine needs.
var (
	_ mediasync.FeedStore           = Repo{}
	_ mediasync.WatermarkStore      = Repo{}
	_ mediasync.ActivationDirectory = Repo{}
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
