// Package cache keeps enrollment snapshots in Valkey so consecutive kiosk
// sessions do not each hit the employee backend.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrMiss is returned by Store.Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Store is the key/value surface the snapshot cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Valkey implements Store using Valkey (Redis-compatible).
type Valkey struct {
	client valkey.Client
}

// NewValkey creates a new Valkey cache client.
func NewValkey(addr string) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Valkey{client: client}, nil
}

// Get retrieves a value by key. A missing key yields ErrMiss.
func (v *Valkey) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get %s: %w", key, err)
	}
	return b, nil
}

// Set stores a value with a TTL. A non-positive TTL stores without expiry.
func (v *Valkey) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = v.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Ex(ttl).Build()
	} else {
		cmd = v.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	}
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (v *Valkey) Delete(ctx context.Context, key string) error {
	if err := v.client.Do(ctx, v.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (v *Valkey) Ping(ctx context.Context) error {
	return v.client.Do(ctx, v.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (v *Valkey) Close() {
	v.client.Close()
}
