package model

import "github.com/ivankudzin/payflow/internal/domain/enums"

// Subject is a purchasable catalog entry: a course or a restaurant order.
// Price and currency are fixed server-side and never taken from client input.
type Subject struct {
	ID         string            `json:"id"`
	Kind       enums.SubjectKind `json:"kind"`
	Title      string            `json:"title"`
	PriceMinor int64             `json:"price_minor"`
	Currency   string            `json:"currency"`
	ImageRef   string            `json:"image_ref,omitempty"`
}
