package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/virtualmegamall/api/internal/payments"
	"github.com/virtualmegamall/api/internal/platform/config"
	"github.com/virtualmegamall/api/internal/repositories"
	"github.com/virtualmegamall/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Cart     services.CartService
	Checkout services.CheckoutService
	Orders   services.OrderService
	System   services.SystemService
}

// EventLogger matches the structured event callback the service layer accepts.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

// Deps carries the infrastructure the container assembles services from.
// Publisher and Health are optional; the corresponding features degrade
// gracefully when absent.
type Deps struct {
	Carts     repositories.CartRepository
	Orders    repositories.OrderRepository
	Health    repositories.HealthRepository
	Payments  *payments.Manager
	Publisher services.OrderEventPublisher
	Clock     func() time.Time
	Logger    func(component string) EventLogger
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config   config.Config
	Services Services
}

// NewContainer constructs the runtime service graph from the provided dependencies.
func NewContainer(cfg config.Config, deps Deps) (*Container, error) {
	if deps.Carts == nil {
		return nil, errors.New("di: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("di: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("di: payment manager is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(string) EventLogger {
			return func(context.Context, string, map[string]any) {}
		}
	}

	svc, err := buildServices(cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Services: svc,
	}, nil
}

func buildServices(cfg config.Config, deps Deps, logger func(string) EventLogger) (Services, error) {
	var svc Services

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository:  deps.Carts,
		Clock:       deps.Clock,
		MaxQuantity: cfg.Cart.MaxQuantity,
		Logger:      logger("cart"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Payments:          deps.Payments,
		Clock:             deps.Clock,
		Currency:          cfg.Checkout.Currency,
		DefaultSuccessURL: storefrontURL(cfg.Storefront.BaseURL, cfg.Storefront.SuccessPath),
		DefaultCancelURL:  storefrontURL(cfg.Storefront.BaseURL, cfg.Storefront.CancelPath),
		Logger:            logger("checkout"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    deps.Orders,
		Cart:      deps.Carts,
		LineItems: deps.Payments,
		Publisher: deps.Publisher,
		Clock:     deps.Clock,
		Logger:    logger("orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	if deps.Health != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: deps.Health,
			Clock:            deps.Clock,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func storefrontURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
