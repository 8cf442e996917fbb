// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package hypergraph

import (
	"fmt"
	"sort"
	"strings"
)

// attributeLink maps a media feature key onto the attribute entity kind it
// creates and the edge type that links the two.
type attributeLink struct {
	kind Kind
	edge InteractionType
}

var attributeKeys = map[string]attributeLink{
	"genre":     {KindGenre, SameGenre},
	"genres":    {KindGenre, SameGenre},
	"actor":     {KindActor, SameCast},
	"actors":    {KindActor, SameCast},
	"cast":      {KindActor, SameCast},
	"director":  {KindDirector, SameDirector},
	"directors": {KindDirector, SameDirector},
}

// AttributeID returns the entity id for an attribute value, e.g.
// AttributeID(KindGenre, "Science Fiction") == "genre:science_fiction".
func AttributeID(kind Kind, name string) string {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.Join(strings.Fields(norm), "_")
	norm = strings.ReplaceAll(norm, "/", "_")
	return string(kind) + ":" + norm
}

// AttributeName returns the display name stored on an attribute entity.
func AttributeName(e Entity) string {
	if v, ok := e.Features["name"]; ok {
		if s, ok := v.Str(); ok {
			return s
		}
	}
	if i := strings.IndexByte(e.ID, ':'); i >= 0 {
		return e.ID[i+1:]
	}
	return e.ID
}

// RegisterMedia registers a media item and links it to genre, actor and
// director attribute entities derived from its features. Link edges carry
// the media creation time so re-registration deduplicates them.
func (s *Store) RegisterMedia(id string, features Features) (uint64, error) {
	media, version, err := s.registerEntity(id, KindMedia, features)
	if err != nil {
		return 0, err
	}

	for _, key := range features.Keys() {
		link, ok := attributeKeys[key]
		if !ok {
			continue
		}
		for _, name := range features[key].Strings() {
			if strings.TrimSpace(name) == "" {
				continue
			}
			attrID := AttributeID(link.kind, name)
			if _, _, err := s.registerEntity(attrID, link.kind, Features{"name": String(name)}); err != nil {
				return version, fmt.Errorf("register attribute %s: %w", attrID, err)
			}
			res, err := s.RecordInteraction(Interaction{
				EntityIDs: []string{id, attrID},
				Type:      link.edge,
				Timestamp: media.CreatedAt,
			})
			if err != nil {
				return version, fmt.Errorf("link %s to %s: %w", id, attrID, err)
			}
			version = res.Version
		}
	}
	return version, nil
}

// SharedAttributes returns the attribute entities adjacent to both a and b.
func (s *Store) SharedAttributes(a, b string) ([]Entity, error) {
	attrsOf := func(id string) (map[string]struct{}, error) {
		edges, err := s.AdjacencyOf(id)
		if err != nil {
			return nil, err
		}
		out := make(map[string]struct{})
		for _, e := range edges {
			for _, m := range e.EntityIDs {
				if m != id {
					out[m] = struct{}{}
				}
			}
		}
		return out, nil
	}

	left, err := attrsOf(a)
	if err != nil {
		return nil, err
	}
	right, err := attrsOf(b)
	if err != nil {
		return nil, err
	}

	var shared []Entity
	for id := range left {
		if _, ok := right[id]; !ok {
			continue
		}
		if e, ok := s.Entity(id); ok && e.Kind.IsAttribute() {
			shared = append(shared, e)
		}
	}
	sortEntities(shared)
	return shared, nil
}

var attributeRank = map[Kind]int{KindGenre: 0, KindDirector: 1, KindActor: 2}

// sortEntities orders genres before directors before actors, then by id.
func sortEntities(es []Entity) {
	sort.Slice(es, func(i, j int) bool {
		ri, rj := attributeRank[es[i].Kind], attributeRank[es[j].Kind]
		if ri != rj {
			return ri < rj
		}
		return es[i].ID < es[j].ID
	})
}
