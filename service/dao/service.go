// Package dao defines the generic persistence contract shared by all stores.
package dao

import (
	"context"
)

// Service is the generic persistence contract, keyed by K and storing T.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
