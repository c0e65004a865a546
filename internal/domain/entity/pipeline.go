package entity

import "time"

// Pipeline is a durable, named graph definition. FullGraph stores the raw
// editor JSON verbatim; the canonical {nodes, edges} form is derived from
// it at execution time by the graph normaliser, never persisted itself.
type Pipeline struct {
	ID          string
	Name        string
	FullGraph   map[string]any
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
