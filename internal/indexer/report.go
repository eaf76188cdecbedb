package indexer

import (
	"time"

	"github.com/joseph-ayodele/taix/constants"
)

// Stage names where a document can drop out of a run.
const (
	StageSource  = "source"
	StageRender  = "render"
	StageExtract = "extract"
	StageBuild   = "build"
	StageWrite   = "write"
)

// PurgeResult is the outcome of clearing one collection.
type PurgeResult struct {
	Collection string
	Deleted    int64
	Err        error
}

// Failure records one skipped document or dropped chunk.
type Failure struct {
	Path  string
	Stage string
	Err   error
}

type Report struct {
	State         constants.IndexState
	Purges        []PurgeResult
	Documents     int
	Rendered      int
	Built         int
	Written       int
	LimitWritten  bool
	WriteFailures int
	Failures      []Failure
	Elapsed       time.Duration
}

// PurgeFailed reports whether any collection could not be cleared.
func (r Report) PurgeFailed() bool {
	for _, p := range r.Purges {
		if p.Err != nil {
			return true
		}
	}
	return false
}
