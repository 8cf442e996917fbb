// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package hypergraph

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseFeatures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     map[string]interface{}
		wantErr bool
	}{
		{"scalars", map[string]interface{}{"title": "Heat", "year": 1995.0, "hd": true}, false},
		{"string list", map[string]interface{}{"genres": []interface{}{"Crime", "Drama"}}, false},
		{"int", map[string]interface{}{"runtime": 170}, false},
		{"nested object", map[string]interface{}{"meta": map[string]interface{}{"a": 1}}, true},
		{"mixed list", map[string]interface{}{"genres": []interface{}{"Crime", 3}}, true},
		{"null", map[string]interface{}{"title": nil}, true},
		{"bad key", map[string]interface{}{"Title": "Heat"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseFeatures(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFeatures) {
					t.Errorf("ParseFeatures() error = %v, want ErrInvalidFeatures", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseFeatures() unexpected error: %v", err)
			}
		})
	}
}

func TestFeaturesJSON(t *testing.T) {
	t.Parallel()

	in := []byte(`{"title":"Heat","year":1995,"hd":true,"cast":["Pacino","De Niro"]}`)
	var f Features
	if err := json.Unmarshal(in, &f); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s, ok := f["title"].Str(); !ok || s != "Heat" {
		t.Errorf("title = %q, %v", s, ok)
	}
	if n, ok := f["year"].Num(); !ok || n != 1995 {
		t.Errorf("year = %v, %v", n, ok)
	}
	if l, ok := f["cast"].List(); !ok || len(l) != 2 {
		t.Errorf("cast = %v, %v", l, ok)
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]interface{}
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back["hd"] != true {
		t.Errorf("hd = %v after re-encode", back["hd"])
	}

	var bad Features
	if err := json.Unmarshal([]byte(`{"x":{"y":1}}`), &bad); err == nil {
		t.Error("expected an error for a nested object")
	}
}

func TestFeatureTokens(t *testing.T) {
	t.Parallel()

	got := StringList("a", "b").Tokens("genres")
	if len(got) != 2 || got[0] != "genres=a" {
		t.Errorf("Tokens() = %v", got)
	}
	if got := Number(2.5).Tokens("rating"); got[0] != "rating=2.5" {
		t.Errorf("Tokens() = %v", got)
	}
}
