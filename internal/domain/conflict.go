package domain

import (
	"fmt"
	"time"
)

// ResolutionAction is one of the four choices offered to the contributor
// when a candidate chunk collides with existing knowledge.
type ResolutionAction string

const (
	ActionReplace    ResolutionAction = "replace"
	ActionMerge      ResolutionAction = "merge"
	ActionCancel     ResolutionAction = "cancel"
	ActionManualEdit ResolutionAction = "manual-edit"
)

// ResolutionActions lists the options presented with every conflict, in
// display order.
var ResolutionActions = []ResolutionAction{
	ActionReplace, ActionMerge, ActionCancel, ActionManualEdit,
}

// ChunkState tracks a single candidate chunk through ingestion.
//
// Proposed -> {Stored | AwaitingResolution -> {Stored | Superseded | Discarded}}
type ChunkState string

const (
	ChunkStateProposed           ChunkState = "proposed"
	ChunkStateStored             ChunkState = "stored"
	ChunkStateAwaitingResolution ChunkState = "awaiting-resolution"
	ChunkStateSuperseded         ChunkState = "superseded"
	ChunkStateDiscarded          ChunkState = "discarded"
)

// ConflictKind distinguishes why the resolver flagged the candidate.
type ConflictKind string

const (
	// ConflictKindDuplicate means the candidate restates an existing entry.
	ConflictKindDuplicate ConflictKind = "duplicate"
	// ConflictKindContradiction means the texts are embedding-similar but
	// assert materially different content.
	ConflictKindContradiction ConflictKind = "contradiction"
)

// ConflictDescriptor is a first-class ingest outcome, not an error. The
// resolver enumerates options; the caller decides.
type ConflictDescriptor struct {
	ResolutionID  string
	Kind          ConflictKind
	CandidateText string
	ExistingIDs   []string
	BestScore     float32
	Options       []ResolutionAction
	State         ChunkState
	CreatedAt     time.Time
}

// ParseResolutionAction validates a caller-supplied action string.
func ParseResolutionAction(raw string) (ResolutionAction, error) {
	action := ResolutionAction(raw)
	switch action {
	case ActionReplace, ActionMerge, ActionCancel, ActionManualEdit:
		return action, nil
	}
	return "", NewDomainErrorWithCause(ErrCodeValidation,
		fmt.Sprintf("unknown resolution action %q", raw), ErrInvalidResolution)
}
