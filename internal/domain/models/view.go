package models

import "time"

type ViewKind string

const (
	ViewList  ViewKind = "list"
	ViewEmpty ViewKind = "empty"
	ViewError ViewKind = "error"
)

// View is what a renderer last displayed.
type View struct {
	Kind      ViewKind  `json:"kind"`
	Assets    []Asset   `json:"assets,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a copy of the tracker state at one instant.
type Snapshot struct {
	Source  Source  `json:"source"`
	Page    int     `json:"page"`
	Loading bool    `json:"loading"`
	Query   string  `json:"query,omitempty"`
	Assets  []Asset `json:"assets,omitempty"`
}
