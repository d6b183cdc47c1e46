package step

import "github.com/Cyclone1070/buildforme/internal/artifact"

// Status represents the lifecycle position of a step.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Step is the user-visible projection of one build action.
type Step struct {
	ID                int           `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Status            Status        `json:"status"`
	Kind              artifact.Kind `json:"kind"`
	SourceActionIndex int           `json:"sourceActionIndex"`
	Reason            string        `json:"reason,omitempty"`
}
