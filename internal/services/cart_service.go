package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/virtualmegamall/api/internal/pricing"
	"github.com/virtualmegamall/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

const defaultMaxLineQuantity = 10

// ErrCartNotAuthenticated indicates the caller has no resolved user identity.
var ErrCartNotAuthenticated = errors.New("cart service: not authenticated")

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the addressed cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// CartServiceDeps wires the repository and policy knobs for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Clock       func() time.Time
	MaxQuantity int64
	Logger      func(context.Context, string, map[string]any)
}

type cartService struct {
	repo   repositories.CartRepository
	now    func() time.Time
	maxQty int64
	logger func(context.Context, string, map[string]any)
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	maxQty := deps.MaxQuantity
	if maxQty <= 0 {
		maxQty = defaultMaxLineQuantity
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:   deps.Repository,
		now:    func() time.Time { return deps.Clock().UTC() },
		maxQty: maxQty,
		logger: logger,
	}, nil
}

// GetCart loads the user's cart lines and derives the summary.
func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CartView{}, ErrCartNotAuthenticated
	}

	lines, err := s.repo.ListLines(ctx, uid)
	if err != nil {
		return CartView{}, s.translateRepoError(err)
	}
	return buildCartView(lines), nil
}

// AddItem increments the quantity of a cart line, creating it when absent.
// The resulting quantity is clamped to the configured per-line maximum.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CartView{}, ErrCartNotAuthenticated
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return CartView{}, fmt.Errorf("%w: name is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		productID = deriveProductID(name)
	}
	if productID == "" {
		return CartView{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	price := strings.TrimSpace(cmd.PriceDisplay)
	if price == "" {
		return CartView{}, fmt.Errorf("%w: price is required", ErrCartInvalidInput)
	}
	if _, err := pricing.NormalizeDisplayPrice(price); err != nil {
		return CartView{}, fmt.Errorf("%w: price %q is not parseable", ErrCartInvalidInput, price)
	}

	quantity := cmd.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	now := s.now()
	line := CartLineItem{
		ProductID:    productID,
		Name:         name,
		Brand:        strings.TrimSpace(cmd.Brand),
		PriceDisplay: price,
		ImageURL:     strings.TrimSpace(cmd.ImageURL),
		Quantity:     quantity,
		Size:         strings.TrimSpace(cmd.Size),
		Color:        strings.TrimSpace(cmd.Color),
		AddedAt:      now,
		UpdatedAt:    now,
	}

	existing, err := s.repo.GetLine(ctx, uid, productID)
	switch {
	case err == nil:
		line.Quantity = existing.Quantity + quantity
		line.AddedAt = existing.AddedAt
	case isRepoNotFound(err):
		// First add for this product.
	default:
		return CartView{}, s.translateRepoError(err)
	}

	if line.Quantity > s.maxQty {
		line.Quantity = s.maxQty
	}

	if err := s.repo.SetLine(ctx, uid, line); err != nil {
		return CartView{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.item_added", map[string]any{
		"userId":    uid,
		"productId": productID,
		"quantity":  line.Quantity,
	})

	return s.GetCart(ctx, uid)
}

// SetQuantity replaces the quantity of an existing cart line. Quantities at
// or below zero remove the line instead.
func (s *cartService) SetQuantity(ctx context.Context, cmd SetCartQuantityCommand) (CartView, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CartView{}, ErrCartNotAuthenticated
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return CartView{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	if cmd.Quantity <= 0 {
		if err := s.repo.DeleteLine(ctx, uid, productID); err != nil {
			return CartView{}, s.translateRepoError(err)
		}
		return s.GetCart(ctx, uid)
	}

	line, err := s.repo.GetLine(ctx, uid, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartView{}, ErrCartNotFound
		}
		return CartView{}, s.translateRepoError(err)
	}

	quantity := cmd.Quantity
	if quantity > s.maxQty {
		quantity = s.maxQty
	}
	line.Quantity = quantity
	line.UpdatedAt = s.now()

	if err := s.repo.SetLine(ctx, uid, line); err != nil {
		return CartView{}, s.translateRepoError(err)
	}
	return s.GetCart(ctx, uid)
}

// RemoveItem deletes a cart line. Removing an absent line succeeds.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (CartView, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CartView{}, ErrCartNotAuthenticated
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return CartView{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	if err := s.repo.DeleteLine(ctx, uid, pid); err != nil {
		return CartView{}, s.translateRepoError(err)
	}
	return s.GetCart(ctx, uid)
}

// ClearCart removes every line from the user's cart.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartNotAuthenticated
	}
	if err := s.repo.Clear(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// WatchCart streams cart views to fn on every change until stop is called or
// ctx ends. A blank owner yields one empty view and no subscription.
func (s *cartService) WatchCart(ctx context.Context, userID string, fn func(CartView)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: callback is required", ErrCartInvalidInput)
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		fn(buildCartView(nil))
		return func() {}, nil
	}

	stop, err := s.repo.Watch(ctx, uid, func(lines []CartLineItem) {
		fn(buildCartView(lines))
	})
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return stop, nil
}

// deriveProductID builds a stable document id from the display name when the
// storefront has no catalog id for the product.
func deriveProductID(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

func buildCartView(lines []CartLineItem) CartView {
	view := CartView{Items: lines}
	if view.Items == nil {
		view.Items = []CartLineItem{}
	}
	for _, line := range lines {
		view.Summary.Count += line.Quantity
		total, err := pricing.LineTotal(line.PriceDisplay, line.Quantity)
		if err != nil {
			// Unparseable prices contribute nothing to the total.
			continue
		}
		view.Summary.TotalMinor += total
	}
	return view
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}
