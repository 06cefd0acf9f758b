package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/virtualmegamall/api/internal/domain"
	pfirestore "github.com/virtualmegamall/api/internal/platform/firestore"
	"github.com/virtualmegamall/api/internal/repositories"
)

const (
	usersCollection   = "users"
	cartSubcollection = "cart"
	cartOrderField    = "addedAt"
)

// CartRepository persists cart line items in per-user subcollections.
type CartRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

type cartLineDocument struct {
	Name      string    `firestore:"name"`
	Brand     string    `firestore:"brand,omitempty"`
	Price     string    `firestore:"price"`
	ImageURL  string    `firestore:"imageUrl,omitempty"`
	Quantity  int64     `firestore:"quantity"`
	Size      string    `firestore:"size,omitempty"`
	Color     string    `firestore:"color,omitempty"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// GetLine fetches a single cart line for the user.
func (r *CartRepository) GetLine(ctx context.Context, userID, productID string) (domain.CartLineItem, error) {
	coll, err := r.cartRef(ctx, userID)
	if err != nil {
		return domain.CartLineItem{}, err
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return domain.CartLineItem{}, errors.New("cart repository: product id is required")
	}

	snap, err := coll.Doc(pid).Get(ctx)
	if err != nil {
		return domain.CartLineItem{}, pfirestore.WrapError("cart.get", err)
	}
	return decodeCartLine(snap)
}

// SetLine upserts the cart line under users/{userID}/cart/{productID}.
func (r *CartRepository) SetLine(ctx context.Context, userID string, line domain.CartLineItem) error {
	coll, err := r.cartRef(ctx, userID)
	if err != nil {
		return err
	}
	pid := strings.TrimSpace(line.ProductID)
	if pid == "" {
		return errors.New("cart repository: product id is required")
	}

	doc := cartLineDocument{
		Name:      line.Name,
		Brand:     line.Brand,
		Price:     line.PriceDisplay,
		ImageURL:  line.ImageURL,
		Quantity:  line.Quantity,
		Size:      line.Size,
		Color:     line.Color,
		AddedAt:   line.AddedAt.UTC(),
		UpdatedAt: line.UpdatedAt.UTC(),
	}
	if _, err := coll.Doc(pid).Set(ctx, doc); err != nil {
		return pfirestore.WrapError("cart.set", err)
	}
	return nil
}

// DeleteLine removes the cart line. Absent lines delete without error.
func (r *CartRepository) DeleteLine(ctx context.Context, userID, productID string) error {
	coll, err := r.cartRef(ctx, userID)
	if err != nil {
		return err
	}
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return errors.New("cart repository: product id is required")
	}

	if _, err := coll.Doc(pid).Delete(ctx); err != nil {
		return pfirestore.WrapError("cart.delete", err)
	}
	return nil
}

// ListLines returns the user's cart lines ordered newest-first.
func (r *CartRepository) ListLines(ctx context.Context, userID string) ([]domain.CartLineItem, error) {
	coll, err := r.cartRef(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy(cartOrderField, firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var lines []domain.CartLineItem
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("cart.list", err)
		}
		line, err := decodeCartLine(snap)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Clear deletes every cart line for the user in one batched write.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	coll, err := r.cartRef(ctx, userID)
	if err != nil {
		return err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	iter := coll.Documents(ctx)
	defer iter.Stop()

	batch := client.Batch()
	count := 0
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
		batch.Delete(snap.Ref)
		count++
	}
	if count == 0 {
		return nil
	}

	if _, err := batch.Commit(ctx); err != nil {
		return pfirestore.WrapError("cart.clear", err)
	}
	return nil
}

// Watch subscribes to cart snapshots, invoking fn with the full ordered
// contents on every change until stop is called or ctx ends.
func (r *CartRepository) Watch(ctx context.Context, userID string, fn repositories.CartSnapshotFunc) (func(), error) {
	if fn == nil {
		return nil, errors.New("cart repository: snapshot callback is required")
	}
	coll, err := r.cartRef(ctx, userID)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	snapshots := coll.OrderBy(cartOrderField, firestore.Desc).Snapshots(watchCtx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				return
			}

			lines := make([]domain.CartLineItem, 0, snap.Size)
			docs := snap.Documents
			for {
				docSnap, err := docs.Next()
				if errors.Is(err, iterator.Done) {
					break
				}
				if err != nil {
					return
				}
				line, err := decodeCartLine(docSnap)
				if err != nil {
					continue
				}
				lines = append(lines, line)
			}
			fn(lines)
		}
	}()

	return cancel, nil
}

func (r *CartRepository) cartRef(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(usersCollection).Doc(uid).Collection(cartSubcollection), nil
}

func decodeCartLine(snap *firestore.DocumentSnapshot) (domain.CartLineItem, error) {
	var doc cartLineDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.CartLineItem{}, pfirestore.WrapError("cart.decode", err)
	}
	return domain.CartLineItem{
		ProductID:    snap.Ref.ID,
		Name:         doc.Name,
		Brand:        doc.Brand,
		PriceDisplay: doc.Price,
		ImageURL:     doc.ImageURL,
		Quantity:     doc.Quantity,
		Size:         doc.Size,
		Color:        doc.Color,
		AddedAt:      doc.AddedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}
