package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/fjod/go_cart/checkout-flow/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	CreateOrder(ctx context.Context, order *d.Order, event *repository.OutboxEvent) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*d.Order, error)
	GetOrderByCheckoutToken(ctx context.Context, token string) (*d.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*d.Order, error)
	GetAddress(ctx context.Context, customerID string, id int64) (*d.Address, error)
}

type Pricer interface {
	Totals(ctx context.Context, cart *d.Cart) (d.Totals, error)
}

// Service turns carts into orders. Placement is idempotent on the cart
// checkout token.
type Service struct {
	repo   Repository
	pricer Pricer
	log    *zap.Logger
}

func NewService(repo Repository, pricer Pricer, log *zap.Logger) *Service {
	return &Service{repo: repo, pricer: pricer, log: log}
}

var ErrMissingCheckoutToken = errors.New("cart has no checkout token")

// PlaceOrder snapshots the cart into an order record and queues an
// OrderPlaced event in the same transaction. A token that already produced
// an order returns that order's id.
func (s *Service) PlaceOrder(ctx context.Context, cart *d.Cart) (string, error) {
	if cart.CheckoutToken == "" {
		return "", ErrMissingCheckoutToken
	}

	existing, err := s.repo.GetOrderByCheckoutToken(ctx, cart.CheckoutToken)
	if err == nil {
		s.log.Info("order already exists for checkout token",
			zap.String("cart_id", cart.ID),
			zap.String("order_id", existing.ID.String()))
		return existing.ID.String(), nil
	}
	if !errors.Is(err, d.ErrOrderNotFound) {
		return "", fmt.Errorf("failed to get order by token: %w", err)
	}

	order, err := s.buildOrder(ctx, cart)
	if err != nil {
		return "", err
	}
	event, err := placedEvent(order)
	if err != nil {
		return "", err
	}

	err = s.repo.CreateOrder(ctx, order, event)
	if errors.Is(err, d.ErrDuplicateCheckout) {
		// lost a race with another placement of the same cart
		winner, err := s.repo.GetOrderByCheckoutToken(ctx, cart.CheckoutToken)
		if err != nil {
			return "", fmt.Errorf("failed to get order by token: %w", err)
		}
		return winner.ID.String(), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to save order: %w", err)
	}
	return order.ID.String(), nil
}

func (s *Service) buildOrder(ctx context.Context, cart *d.Cart) (*d.Order, error) {
	totals, err := s.pricer.Totals(ctx, cart)
	if err != nil {
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}
	shipping, err := s.snapshotAddress(ctx, cart.CustomerID, cart.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	billing, err := s.snapshotAddress(ctx, cart.CustomerID, cart.BillingAddressID)
	if err != nil {
		return nil, err
	}

	items := make([]d.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, d.OrderItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	return &d.Order{
		ID:              uuid.New(),
		CheckoutToken:   cart.CheckoutToken,
		CartID:          cart.ID,
		CustomerID:      cart.CustomerID,
		Items:           items,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		SubtotalCents:   totals.SubtotalCents,
		DiscountCents:   totals.DiscountCents,
		TotalCents:      totals.TotalCents,
		Currency:        totals.Currency,
		Status:          d.OrderStatusConfirmed,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// snapshotAddress copies the referenced address into the order. A reference
// that no longer resolves is recorded as no address.
func (s *Service) snapshotAddress(ctx context.Context, customerID string, id int64) (*d.Address, error) {
	if id == 0 {
		return nil, nil
	}
	a, err := s.repo.GetAddress(ctx, customerID, id)
	if errors.Is(err, d.ErrAddressNotFound) {
		s.log.Warn("address vanished before order placement", zap.Int64("address_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address %d: %w", id, err)
	}
	return a, nil
}

func placedEvent(order *d.Order) (*repository.OutboxEvent, error) {
	payload, err := json.Marshal(d.OrderPlacedEvent{
		OrderID:    order.ID.String(),
		CartID:     order.CartID,
		CustomerID: order.CustomerID,
		Items:      order.Items,
		TotalCents: order.TotalCents,
		Currency:   order.Currency,
		PlacedAt:   order.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order placed event: %w", err)
	}
	return &repository.OutboxEvent{
		AggregateID: order.ID.String(),
		EventType:   d.EventOrderPlaced,
		Payload:     payload,
		CreatedAt:   order.CreatedAt,
	}, nil
}

// Get returns the order if it belongs to customerID.
func (s *Service) Get(ctx context.Context, customerID, orderID string) (*d.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, d.ErrOrderNotFound
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, d.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, customerID string) ([]*d.Order, error) {
	orders, err := s.repo.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []*d.Order{}
	}
	return orders, nil
}
