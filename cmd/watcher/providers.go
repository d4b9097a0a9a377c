package main

import (
	"github.com/radarhq/mediasync/internal/worker"
)

// buildSources is where provider adapters get wired into the worker. Each
// adapter implements mediasync.ProviderClient (entity search, watermark-
// bounded listing, detail fetch) and lives in its own package; this binary
// ships without any so deployments register only the providers they license.
func buildSources() []worker.Source {
	return nil
}
