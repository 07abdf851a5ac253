package domain

import "time"

// Asset is one registered fungible-asset class. Asset ids are dense, start at
// 1, and are never reused; id 0 is reserved to mean "not found". Metadata is
// immutable after registration.
type Asset struct {
	ID         uint64    `json:"id"`
	Underlying Identity  `json:"underlying"`
	Name       string    `json:"name"`
	Symbol     string    `json:"symbol"`
	Decimals   uint8     `json:"decimals"`
	Registered bool      `json:"registered"`
	CreatedAt  time.Time `json:"created_at"`
}
