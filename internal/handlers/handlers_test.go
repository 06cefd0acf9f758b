package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"

	"github.com/virtualmegamall/api/internal/platform/auth"
	"github.com/virtualmegamall/api/internal/services"
)

type staticTokenVerifier struct {
	uid string
	err error
}

func (v *staticTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &firebaseauth.Token{
		UID:    v.uid,
		Claims: map[string]interface{}{"role": "user"},
	}, nil
}

func testAuthenticator(uid string) *auth.Authenticator {
	return auth.NewAuthenticator(&staticTokenVerifier{uid: uid})
}

func serveAuthed(router chi.Router, req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer test-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type stubCartService struct {
	view    services.CartView
	err     error
	lastCmd services.AddCartItemCommand
	lastSet services.SetCartQuantityCommand
	cleared bool
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.CartView, error) {
	return s.view, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.CartView, error) {
	s.lastCmd = cmd
	return s.view, s.err
}

func (s *stubCartService) SetQuantity(ctx context.Context, cmd services.SetCartQuantityCommand) (services.CartView, error) {
	s.lastSet = cmd
	return s.view, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID string) (services.CartView, error) {
	return s.view, s.err
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	s.cleared = true
	return s.err
}

func (s *stubCartService) WatchCart(ctx context.Context, userID string, fn func(services.CartView)) (func(), error) {
	return func() {}, s.err
}

var _ services.CartService = (*stubCartService)(nil)

type stubCheckoutService struct {
	result  services.CheckoutSessionResult
	err     error
	lastCmd services.CreateCheckoutSessionCommand
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutSessionResult, error) {
	s.lastCmd = cmd
	return s.result, s.err
}

var _ services.CheckoutService = (*stubCheckoutService)(nil)

type stubOrderService struct {
	order    services.Order
	page     services.OrderPage
	err      error
	lastMat  services.CompletedCheckoutCommand
	matCalls int
	lastList services.ListOrdersCommand
	lastGet  services.GetOrderCommand
}

func (s *stubOrderService) MaterializeOrder(ctx context.Context, cmd services.CompletedCheckoutCommand) (services.Order, error) {
	s.matCalls++
	s.lastMat = cmd
	return s.order, s.err
}

func (s *stubOrderService) ListOrders(ctx context.Context, cmd services.ListOrdersCommand) (services.OrderPage, error) {
	s.lastList = cmd
	if s.err != nil {
		return services.OrderPage{}, s.err
	}
	return s.page, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error) {
	s.lastGet = cmd
	return s.order, s.err
}

var _ services.OrderService = (*stubOrderService)(nil)
