// Package cache keeps booking listings per (service, date) and lets callers
// invalidate a listing after a booking changes.
package cache

import (
	"context"
	"fmt"
)

const keyPrefix = "bookings"

// Key identifies one booking listing.
type Key struct {
	ServiceID string
	Date      string // YYYY-MM-DD
}

// NewKey builds a key for serviceID on date.
func NewKey(serviceID, date string) Key {
	return Key{ServiceID: serviceID, Date: date}
}

// Parts returns the key as ["bookings", serviceID, date].
func (k Key) Parts() []string {
	return []string{keyPrefix, k.ServiceID, k.Date}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, k.ServiceID, k.Date)
}

// Store caches JSON encodable listings.
type Store interface {
	// Get decodes a fresh entry into out. It reports false on miss.
	Get(ctx context.Context, key Key, out any) bool
	// Set stores val under key.
	Set(ctx context.Context, key Key, val any)
	// Invalidate marks key stale so the next Get misses.
	Invalidate(ctx context.Context, key Key) error
}

// StaleReader is implemented by stores that keep invalidated or expired
// entries around for display while a refetch runs.
type StaleReader interface {
	GetStale(ctx context.Context, key Key, out any) bool
}

// NopStore never caches anything.
type NopStore struct{}

func (NopStore) Get(context.Context, Key, any) bool { return false }

func (NopStore) Set(context.Context, Key, any) {}

func (NopStore) Invalidate(context.Context, Key) error { return nil }
