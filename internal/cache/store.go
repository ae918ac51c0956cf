package cache

import (
	"context"
	"errors"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Backend is the durable cart store behind the cache.
type Backend interface {
	GetCart(ctx context.Context, id string) (*d.Cart, error)
	SaveCart(ctx context.Context, cart *d.Cart) error
	DeleteCart(ctx context.Context, id string) error
}

// Store is a read-through, write-through cart store. Cache failures are
// logged and never fail the call.
type Store struct {
	backend Backend
	cache   CartCache
	log     *zap.Logger
	sfg     singleflight.Group
}

func NewStore(backend Backend, cache CartCache, log *zap.Logger) *Store {
	return &Store{backend: backend, cache: cache, log: log}
}

func (s *Store) GetCart(ctx context.Context, id string) (*d.Cart, error) {
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, id)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("cache get error", zap.String("cart_id", id), zap.Error(err))
		}

		cart, err = s.backend.GetCart(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Fill(ctx, cart); err != nil {
			s.log.Warn("cache fill error", zap.String("cart_id", id), zap.Error(err))
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	// callers sharing the flight must not share the pointer
	return v.(*d.Cart).Clone(), nil
}

func (s *Store) SaveCart(ctx context.Context, cart *d.Cart) error {
	if err := s.backend.SaveCart(ctx, cart); err != nil {
		if errors.Is(err, d.ErrVersionConflict) {
			s.invalidate(cart.ID)
		}
		return err
	}
	if err := s.cache.Set(ctx, cart); err != nil {
		s.log.Warn("cache set error", zap.String("cart_id", cart.ID), zap.Error(err))
		s.invalidate(cart.ID)
	}
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, id string) error {
	err := s.backend.DeleteCart(ctx, id)
	s.invalidate(id)
	return err
}

func (s *Store) invalidate(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("cache invalidate error", zap.String("cart_id", id), zap.Error(err))
	}
}
