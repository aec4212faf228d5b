// Package store implements the pipeline directory: the source of truth the
// Event Consumer and sync ingress handler consult to find pipelines whose
// pattern matches an incoming event. Grounded on the teacher's
// store.PGConfigStore (store/pg_config.go) for the Postgres-backed variant
// and config.FileSource (config/source_file.go) for the file-backed
// variant; both are generalized from the teacher's config-document/
// workflow-config shapes to the spec's Pipeline directory listing.
package store

import (
	"context"

	"github.com/bluzky/pocsync/pipeline"
)

// Directory is the read interface the consumer and ingress packages depend
// on. Every implementation must return a stable, safe-for-concurrent-read
// snapshot of the currently configured pipelines.
type Directory interface {
	ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error)
}
