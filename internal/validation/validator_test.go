// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

type interactionRequest struct {
	EntityIDs []string `validate:"required,min=2,max=16,dive,entityid"`
	Type      string   `validate:"required,oneof=view like skip complete"`
	Weight    *float64 `validate:"omitempty,gte=-10,lte=10"`
}

type mediaRequest struct {
	ID       string                 `validate:"required,entityid"`
	Features map[string]interface{} `validate:"dive,keys,featurekey,endkeys"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	big := 11.0
	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{
			name:  "valid interaction",
			input: &interactionRequest{EntityIDs: []string{"user:1", "movie:9"}, Type: "like"},
		},
		{
			name:      "too few ids",
			input:     &interactionRequest{EntityIDs: []string{"user:1"}, Type: "view"},
			wantField: "EntityIDs",
			wantTag:   "min",
		},
		{
			name:      "bad type",
			input:     &interactionRequest{EntityIDs: []string{"a", "b"}, Type: "share"},
			wantField: "Type",
			wantTag:   "oneof",
		},
		{
			name:      "id with slash",
			input:     &interactionRequest{EntityIDs: []string{"a", "b/c"}, Type: "view"},
			wantField: "EntityIDs[1]",
			wantTag:   "entityid",
		},
		{
			name:      "weight out of range",
			input:     &interactionRequest{EntityIDs: []string{"a", "b"}, Type: "view", Weight: &big},
			wantField: "Weight",
			wantTag:   "lte",
		},
		{
			name:  "valid media",
			input: &mediaRequest{ID: "movie-42", Features: map[string]interface{}{"genre": "Drama", "year": 1999}},
		},
		{
			name:      "bad feature key",
			input:     &mediaRequest{ID: "movie-42", Features: map[string]interface{}{"Release Year": 1999}},
			wantField: "Features[Release Year]",
			wantTag:   "featurekey",
		},
		{
			name:      "missing id",
			input:     &mediaRequest{},
			wantField: "ID",
			wantTag:   "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(tt.input)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() expected error")
			}
			fe := err.Errors()[0]
			if fe.Field() != tt.wantField || fe.Tag() != tt.wantTag {
				t.Errorf("got field %q tag %q, want %q %q", fe.Field(), fe.Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&interactionRequest{EntityIDs: []string{"a"}, Type: "nope"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "EntityIDs") || !strings.Contains(apiErr.Message, "Type must be one of") {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("expected per-field details for multiple errors")
	}
}

func TestIsEntityID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want bool
	}{
		{"user:42", true},
		{"genre:Science_Fiction", true},
		{"", false},
		{"has space", false},
		{"a/b", false},
		{strings.Repeat("x", MaxEntityIDLength+1), false},
		{"tab\there", false},
	}
	for _, tt := range tests {
		if got := IsEntityID(tt.id); got != tt.want {
			t.Errorf("IsEntityID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestIsFeatureKey(t *testing.T) {
	t.Parallel()

	for key, want := range map[string]bool{
		"genre":        true,
		"release_year": true,
		"Genre":        false,
		"":             false,
		"a-b":          false,
	} {
		if got := IsFeatureKey(key); got != want {
			t.Errorf("IsFeatureKey(%q) = %v, want %v", key, got, want)
		}
	}
}
