package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"go.uber.org/zap"
)

const MaxQuantity = 99

var (
	ErrCheckoutInProgress = errors.New("cart is locked for order placement or completion")
	ErrInvalidQuantity    = fmt.Errorf("quantity must be between 1 and %d", MaxQuantity)
)

type Store interface {
	GetCart(ctx context.Context, id string) (*d.Cart, error)
	SaveCart(ctx context.Context, cart *d.Cart) error
}

type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*d.Product, error)
}

type Pricer interface {
	Totals(ctx context.Context, cart *d.Cart) (d.Totals, error)
	CheckCoupon(ctx context.Context, cart *d.Cart, code string) (*d.Coupon, error)
}

// View is a cart with its derived totals.
type View struct {
	Cart   *d.Cart  `json:"cart"`
	Totals d.Totals `json:"totals"`
}

// Service edits cart contents. It never moves the checkout step pointer or
// changes who owns a stored cart.
type Service struct {
	store   Store
	locks   Locker
	catalog Catalog
	pricer  Pricer
	log     *zap.Logger
}

func NewService(store Store, locks Locker, catalog Catalog, pricer Pricer, log *zap.Logger) *Service {
	return &Service{store: store, locks: locks, catalog: catalog, pricer: pricer, log: log}
}

func (s *Service) View(ctx context.Context, cartID, customerID string) (*View, error) {
	c, err := s.load(ctx, cartID, customerID)
	if err != nil {
		return nil, err
	}
	totals, err := s.pricer.Totals(ctx, c)
	if err != nil {
		return nil, err
	}
	return &View{Cart: c, Totals: totals}, nil
}

// AddItem adds quantity of productID at the current catalog price. Adding a
// product already in the cart raises its quantity and refreshes its price.
func (s *Service) AddItem(ctx context.Context, cartID, customerID string, productID int64, quantity int32) (*d.Cart, error) {
	if quantity <= 0 || quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, cartID, customerID, func(c *d.Cart) error {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				total := c.Items[i].Quantity + quantity
				if total > MaxQuantity {
					return ErrInvalidQuantity
				}
				c.Items[i].Quantity = total
				c.Items[i].UnitPriceCents = product.PriceCents
				c.Items[i].Name = product.Name
				return nil
			}
		}
		c.Items = append(c.Items, d.CartItem{
			ProductID:      product.ID,
			Name:           product.Name,
			Quantity:       quantity,
			UnitPriceCents: product.PriceCents,
			AddedAt:        time.Now().UTC(),
		})
		return nil
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, cartID, customerID string, productID int64, quantity int32) (*d.Cart, error) {
	if quantity <= 0 || quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, cartID, customerID, func(c *d.Cart) error {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
		return d.ErrItemNotFound
	})
}

func (s *Service) RemoveItem(ctx context.Context, cartID, customerID string, productID int64) (*d.Cart, error) {
	return s.mutate(ctx, cartID, customerID, func(c *d.Cart) error {
		for i, item := range c.Items {
			if item.ProductID == productID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
		return d.ErrItemNotFound
	})
}

// ApplyCoupon stores code on the cart once it resolves and applies. An empty
// code removes the coupon.
func (s *Service) ApplyCoupon(ctx context.Context, cartID, customerID, code string) (*d.Cart, error) {
	return s.mutate(ctx, cartID, customerID, func(c *d.Cart) error {
		if code == "" {
			c.CouponCode = ""
			return nil
		}
		coupon, err := s.pricer.CheckCoupon(ctx, c, code)
		if err != nil {
			return err
		}
		c.CouponCode = coupon.Code
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, cartID, customerID string, change func(c *d.Cart) error) (*d.Cart, error) {
	unlock, err := s.locks.Lock(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	defer unlock()

	c, err := s.load(ctx, cartID, customerID)
	if err != nil {
		return nil, err
	}
	if c.Step == d.StepOrder || c.PlacedOrderID != "" {
		s.log.Debug("cart change refused during checkout",
			zap.String("cart_id", cartID),
			zap.String("step", c.Step.String()),
			zap.String("order_id", c.PlacedOrderID))
		return nil, ErrCheckoutInProgress
	}

	next := c.Clone()
	if err := change(next); err != nil {
		return nil, err
	}

	next.Version++
	next.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveCart(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return next, nil
}

func (s *Service) load(ctx context.Context, cartID, customerID string) (*d.Cart, error) {
	c, err := s.store.GetCart(ctx, cartID)
	if errors.Is(err, d.ErrCartNotFound) {
		return d.NewCart(cartID, customerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	// a guest cart keeps its owner until checkout adopts it with its addresses
	return c, nil
}
