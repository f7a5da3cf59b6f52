package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ReviewID identifies a review or a place. Crawled documents carry it either
// as a JSON string or as a number; it is always re-marshalled as a string.
type ReviewID string

func (id *ReviewID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ReviewID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ReviewID(n.String())
	return nil
}

func (id ReviewID) String() string { return string(id) }

type Review struct {
	ID      ReviewID  `json:"id"`
	Content string    `json:"content"`
	PlaceID *ReviewID `json:"placeId,omitempty"`
}

// Document is a stored review document: the reviews to summarize plus every
// top-level field of the original payload, kept verbatim for pass-through.
type Document struct {
	Reviews  []Review
	Metadata map[string]json.RawMessage
}

var (
	ErrNotObject      = errors.New("document is not a JSON object")
	ErrMissingReviews = errors.New("document has no reviews array")
)

// ParseDocument decodes and validates a review document. Every review must
// have a non-empty id and a string content.
func ParseDocument(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if top == nil {
		return nil, ErrNotObject
	}

	raw, ok := top["reviews"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrMissingReviews
	}

	reviews, err := parseReviews(raw)
	if err != nil {
		return nil, err
	}
	return &Document{Reviews: reviews, Metadata: top}, nil
}

// ParseReviewList decodes a bare JSON array of reviews, the layout written by
// the batch crawler. The returned document carries no metadata.
func ParseReviewList(data []byte) (*Document, error) {
	reviews, err := parseReviews(data)
	if err != nil {
		return nil, err
	}
	return &Document{Reviews: reviews}, nil
}

func parseReviews(raw json.RawMessage) ([]Review, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingReviews, err)
	}

	reviews := make([]Review, 0, len(items))
	for i, item := range items {
		r, err := parseReview(item)
		if err != nil {
			return nil, fmt.Errorf("review %d: %w", i, err)
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

func parseReview(item map[string]json.RawMessage) (Review, error) {
	var r Review
	if item == nil {
		return r, errors.New("not an object")
	}

	rawID, ok := item["id"]
	if !ok {
		return r, errors.New("missing id")
	}
	if err := json.Unmarshal(rawID, &r.ID); err != nil {
		return r, fmt.Errorf("id: %w", err)
	}
	if r.ID == "" {
		return r, errors.New("empty id")
	}

	rawContent, ok := item["content"]
	if !ok {
		return r, errors.New("missing content")
	}
	if err := json.Unmarshal(rawContent, &r.Content); err != nil {
		return r, fmt.Errorf("content must be a string: %w", err)
	}

	if rawPlace, ok := item["placeId"]; ok {
		var place ReviewID
		if err := json.Unmarshal(rawPlace, &place); err != nil {
			return r, fmt.Errorf("placeId: %w", err)
		}
		if place != "" {
			r.PlaceID = &place
		}
	}
	return r, nil
}
