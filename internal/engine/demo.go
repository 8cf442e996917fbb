// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package engine

import (
	"time"

	"github.com/tomtom215/ruvector/internal/hypergraph"
)

type demoMedia struct {
	id       string
	title    string
	year     float64
	genres   []string
	director string
	cast     []string
}

var demoCatalogue = []demoMedia{
	{"m-arrival", "Arrival", 2016, []string{"Science Fiction", "Drama"}, "Denis Villeneuve", []string{"Amy Adams", "Jeremy Renner"}},
	{"m-blade-runner-2049", "Blade Runner 2049", 2017, []string{"Science Fiction", "Thriller"}, "Denis Villeneuve", []string{"Ryan Gosling", "Harrison Ford"}},
	{"m-dune", "Dune", 2021, []string{"Science Fiction", "Adventure"}, "Denis Villeneuve", []string{"Timothee Chalamet", "Rebecca Ferguson"}},
	{"m-interstellar", "Interstellar", 2014, []string{"Science Fiction", "Drama"}, "Christopher Nolan", []string{"Matthew McConaughey", "Jessica Chastain"}},
	{"m-inception", "Inception", 2010, []string{"Science Fiction", "Thriller"}, "Christopher Nolan", []string{"Leonardo DiCaprio", "Elliot Page"}},
	{"m-la-la-land", "La La Land", 2016, []string{"Romance", "Musical"}, "Damien Chazelle", []string{"Ryan Gosling", "Emma Stone"}},
	{"m-whiplash", "Whiplash", 2014, []string{"Drama", "Music"}, "Damien Chazelle", []string{"Miles Teller", "J.K. Simmons"}},
	{"m-grand-budapest", "The Grand Budapest Hotel", 2014, []string{"Comedy", "Drama"}, "Wes Anderson", []string{"Ralph Fiennes", "Tony Revolori"}},
	{"m-moonrise-kingdom", "Moonrise Kingdom", 2012, []string{"Comedy", "Romance"}, "Wes Anderson", []string{"Jared Gilman", "Bill Murray"}},
	{"m-mad-max-fury-road", "Mad Max: Fury Road", 2015, []string{"Action", "Adventure"}, "George Miller", []string{"Tom Hardy", "Charlize Theron"}},
}

type demoInteraction struct {
	user string
	item string
	typ  hypergraph.InteractionType
	ago  time.Duration
}

var demoInteractions = []demoInteraction{
	{"u-alice", "m-arrival", hypergraph.Complete, 72 * time.Hour},
	{"u-alice", "m-interstellar", hypergraph.Like, 48 * time.Hour},
	{"u-alice", "m-dune", hypergraph.View, 6 * time.Hour},
	{"u-bob", "m-inception", hypergraph.Complete, 30 * time.Hour},
	{"u-bob", "m-blade-runner-2049", hypergraph.Like, 20 * time.Hour},
	{"u-bob", "m-mad-max-fury-road", hypergraph.View, 2 * time.Hour},
	{"u-carol", "m-la-la-land", hypergraph.Like, 50 * time.Hour},
	{"u-carol", "m-whiplash", hypergraph.Complete, 26 * time.Hour},
	{"u-carol", "m-grand-budapest", hypergraph.View, 3 * time.Hour},
	{"u-dave", "m-moonrise-kingdom", hypergraph.Like, 12 * time.Hour},
	{"u-dave", "m-grand-budapest", hypergraph.Complete, 10 * time.Hour},
	{"u-dave", "m-inception", hypergraph.Skip, time.Hour},
}

// seedDemo registers a small film catalogue with a few users so a fresh
// node has something to recommend. It returns the number of media added.
func seedDemo(g *hypergraph.Store) (int, error) {
	for _, m := range demoCatalogue {
		_, err := g.RegisterMedia(m.id, hypergraph.Features{
			"title":    hypergraph.String(m.title),
			"year":     hypergraph.Number(m.year),
			"genres":   hypergraph.StringList(m.genres...),
			"director": hypergraph.String(m.director),
			"cast":     hypergraph.StringList(m.cast...),
		})
		if err != nil {
			return 0, err
		}
	}
	now := g.Now()
	for _, in := range demoInteractions {
		if _, err := g.RegisterEntity(in.user, hypergraph.KindUser, nil); err != nil {
			return 0, err
		}
		_, err := g.RecordInteraction(hypergraph.Interaction{
			EntityIDs: []string{in.user, in.item},
			Type:      in.typ,
			Timestamp: now.Add(-in.ago),
		})
		if err != nil {
			return 0, err
		}
	}
	return len(demoCatalogue), nil
}
