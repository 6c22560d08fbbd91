package archive

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexString decodes a JSON string, number, or list of strings. Lists are
// joined with "; " and anything else decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case data[0] == '[':
		var items []flexString
		if err := json.Unmarshal(data, &items); err != nil {
			*f = ""
			return nil
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if s := strings.TrimSpace(string(it)); s != "" {
				parts = append(parts, s)
			}
		}
		*f = flexString(strings.Join(parts, "; "))
	case data[0] == '{':
		*f = ""
	default:
		*f = flexString(data)
	}
	return nil
}

// First returns the first element of a joined list value
func (f flexString) First() string {
	s, _, _ := strings.Cut(string(f), "; ")
	return strings.TrimSpace(s)
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// flexFloat decodes a JSON number or numeric string. Anything else is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s.First(), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexInt decodes integers given as numbers, strings, or "3/12" positions.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		*f = 0
		return nil
	}
	head, _, _ := strings.Cut(s.First(), "/")
	v, err := strconv.ParseFloat(strings.TrimSpace(head), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(int(v))
	return nil
}

// MetadataResponse is the payload of GET /metadata/{identifier}
type MetadataResponse struct {
	Metadata *ItemMetadata `json:"metadata"`
	Files    []File        `json:"files"`
	Reviews  []Review      `json:"reviews"`
	Server   string        `json:"server"`
	Dir      string        `json:"dir"`
}

// ItemMetadata holds the descriptive fields of an item
type ItemMetadata struct {
	Identifier  flexString `json:"identifier"`
	Title       flexString `json:"title"`
	Date        flexString `json:"date"`
	Venue       flexString `json:"venue"`
	Coverage    flexString `json:"coverage"`
	Source      flexString `json:"source"`
	Taper       flexString `json:"taper"`
	Transferer  flexString `json:"transferer"`
	Lineage     flexString `json:"lineage"`
	Description flexString `json:"description"`
}

// File is one entry of an item's file list
type File struct {
	Name   flexString `json:"name"`
	Title  flexString `json:"title"`
	Track  flexInt    `json:"track"`
	Format flexString `json:"format"`
	Length flexString `json:"length"`
	Size   flexInt    `json:"size"`
	Source flexString `json:"source"`
}

// Review is one user review of an item
type Review struct {
	Stars      flexFloat  `json:"stars"`
	ReviewDate flexString `json:"reviewdate"`
}

// ReviewsResponse is the payload of GET /metadata/{identifier}/reviews
type ReviewsResponse struct {
	Result []Review `json:"result"`
}

// SearchResponse is the payload of advancedsearch.php
type SearchResponse struct {
	Response struct {
		NumFound int         `json:"numFound"`
		Docs     []SearchDoc `json:"docs"`
	} `json:"response"`
}

// SearchDoc is one search hit
type SearchDoc struct {
	Identifier  flexString `json:"identifier"`
	Title       flexString `json:"title"`
	Date        flexString `json:"date"`
	Venue       flexString `json:"venue"`
	Coverage    flexString `json:"coverage"`
	Source      flexString `json:"source"`
	Description flexString `json:"description"`
	AvgRating   flexFloat  `json:"avg_rating"`
	NumReviews  flexInt    `json:"num_reviews"`
}
