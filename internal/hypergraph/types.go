// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package hypergraph

import "time"

// Kind tags what an entity represents.
type Kind string

const (
	KindUser     Kind = "user"
	KindMedia    Kind = "media"
	KindGenre    Kind = "genre"
	KindActor    Kind = "actor"
	KindDirector Kind = "director"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindMedia, KindGenre, KindActor, KindDirector:
		return true
	}
	return false
}

// IsAttribute reports whether k is a derived attribute kind.
func (k Kind) IsAttribute() bool {
	return k == KindGenre || k == KindActor || k == KindDirector
}

// InteractionType is the hyperedge type.
type InteractionType string

const (
	View     InteractionType = "view"
	Like     InteractionType = "like"
	Skip     InteractionType = "skip"
	Complete InteractionType = "complete"

	SameGenre    InteractionType = "same_genre"
	SameCast     InteractionType = "same_cast"
	SameDirector InteractionType = "same_director"

	// Aggregate edges are produced by compaction.
	Aggregate InteractionType = "aggregate"
)

// IsUserInteraction reports whether t comes from user behaviour rather
// than catalogue structure or compaction.
func (t InteractionType) IsUserInteraction() bool {
	switch t {
	case View, Like, Skip, Complete:
		return true
	}
	return false
}

// Origin classifies the edges an aggregate was folded from. Compaction
// never mixes origins in one aggregate.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginCatalogue Origin = "catalogue"
)

// Entity is a node of the hypergraph.
type Entity struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Features  Features  `json:"features,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// Hyperedge is an immutable n-ary relation over entity ids.
type Hyperedge struct {
	// Seq is the log position assigned at append time.
	Seq       uint64          `json:"seq"`
	Hash      string          `json:"hash"`
	EntityIDs []string        `json:"entity_ids"` // sorted, unique
	Type      InteractionType `json:"type"`
	Weight    float64         `json:"weight"`
	Timestamp time.Time       `json:"timestamp"`

	// Count is the number of original edges folded into an aggregate; 1 otherwise.
	Count int `json:"count"`

	// Origin is set on aggregates only.
	Origin Origin `json:"origin,omitempty"`
}

// FromUser reports whether the edge records user behaviour, either
// directly or as an aggregate of user interactions.
func (e *Hyperedge) FromUser() bool {
	if e.Type == Aggregate {
		return e.Origin == OriginUser
	}
	return e.Type.IsUserInteraction()
}

// origin returns the class the edge folds into.
func (e *Hyperedge) origin() Origin {
	if e.FromUser() {
		return OriginUser
	}
	return OriginCatalogue
}

// Contains reports whether id is a member of the edge.
func (e *Hyperedge) Contains(id string) bool {
	for _, m := range e.EntityIDs {
		if m == id {
			return true
		}
	}
	return false
}

// Interaction is the input to RecordInteraction.
type Interaction struct {
	EntityIDs []string
	Type      InteractionType

	// Weight overrides the per-type default when non-nil.
	Weight *float64

	// Timestamp defaults to the store clock when zero.
	Timestamp time.Time
}

// RecordResult describes the outcome of RecordInteraction.
type RecordResult struct {
	Edge      *Hyperedge
	Version   uint64
	Duplicate bool
}

// CompactResult describes the outcome of Compact.
type CompactResult struct {
	Folded     int
	Aggregates int
	Version    uint64
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	EntitiesByKind map[Kind]int `json:"entities_by_kind"`
	Inactive       int          `json:"inactive"`
	Edges          int          `json:"edges"`
	Offset         uint64       `json:"offset"`
	Version        uint64       `json:"version"`
}

// State is a serializable copy of the whole store.
type State struct {
	Entities []Entity    `json:"entities"`
	Edges    []Hyperedge `json:"edges"`
	Offset   uint64      `json:"offset"`
}
