// Package cartstore keeps in-progress table carts in Redis. A cart lives
// under cart:<table id> and expires after the configured TTL of inactivity.
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kiwari-pos/kot-api/internal/pos"
	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix  = "cart:"
	DefaultTTL = 12 * time.Hour

	maxUpdateRetries = 5
)

// ErrConflict means the cart kept changing under a concurrent writer.
var ErrConflict = errors.New("cart modified concurrently, retry")

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func Key(tableID string) string {
	return KeyPrefix + tableID
}

// Get returns the table's cart, or a new empty cart if none is stored.
func (s *Store) Get(ctx context.Context, tableID string) (*pos.Cart, error) {
	return get(ctx, s.client, tableID)
}

func get(ctx context.Context, c redis.Cmdable, tableID string) (*pos.Cart, error) {
	val, err := c.Get(ctx, Key(tableID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return pos.NewCart(tableID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return decode(tableID, val)
}

func decode(tableID string, val []byte) (*pos.Cart, error) {
	var cart pos.Cart
	if err := json.Unmarshal(val, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []pos.LineItem{}
	}
	cart.TableID = tableID
	return &cart, nil
}

// Save writes the cart and refreshes its TTL. An empty cart is deleted.
func (s *Store) Save(ctx context.Context, cart *pos.Cart) error {
	return save(ctx, s.client, cart, s.ttl)
}

func save(ctx context.Context, c redis.Cmdable, cart *pos.Cart, ttl time.Duration) error {
	if cart.IsEmpty() {
		if err := c.Del(ctx, Key(cart.TableID)).Err(); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := c.Set(ctx, Key(cart.TableID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}
	return nil
}

// Update loads the cart, applies fn, and writes the result back inside a
// WATCH transaction so two devices editing the same table do not lose
// each other's lines. If fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, tableID string, fn func(*pos.Cart) error) (*pos.Cart, error) {
	key := Key(tableID)
	var result *pos.Cart

	txf := func(tx *redis.Tx) error {
		cart, err := get(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return save(ctx, pipe, cart, s.ttl)
		})
		if err != nil {
			return err
		}
		result = cart
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

// Delete drops the table's cart. Deleting a missing cart is not an error.
func (s *Store) Delete(ctx context.Context, tableID string) error {
	if err := s.client.Del(ctx, Key(tableID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
