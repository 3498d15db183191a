package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/vmihailenco/msgpack/v5"
)

// SetValue serializa v con msgpack y lo guarda en key.
func (c *Client) SetValue(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, b, ttl)
}

// SetValueNX es SetValue sólo si key no existe.
func (c *Client) SetValueNX(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}
	return c.SetNX(ctx, key, b, ttl)
}

// LoadValue decodifica en dst lo escrito por SetValue; false si no existe.
// Un payload que no decodifica es error, no miss.
func (c *Client) LoadValue(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	b, ok := raw.Get()
	if !ok {
		return false, nil
	}
	if err := msgpack.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func GetValue[T any](ctx context.Context, c *Client, key string) (mo.Option[T], error) {
	var v T
	ok, err := c.LoadValue(ctx, key, &v)
	if err != nil || !ok {
		return mo.None[T](), err
	}
	return mo.Some(v), nil
}
