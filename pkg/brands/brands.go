// Package brands manages the named catalog items that carry a percentage.
package brands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/renewpackages/renewapi/pkg/cache"
	"github.com/renewpackages/renewapi/pkg/storage"
)

const (
	DefaultListingTTL = 5 * time.Minute
	categoryBrands    = "phoneBrands"
)

var (
	// ErrDuplicateName is returned when another brand already has the name.
	ErrDuplicateName = errors.New("phone brand name already exists")
	// ErrInvalid is returned for an empty name or a percentage outside [0,100].
	ErrInvalid = errors.New("invalid phone brand")
)

// Store is the durable brand store.
type Store interface {
	ListBrands(ctx context.Context) ([]storage.Brand, error)
	CreateBrand(ctx context.Context, name string, percentage float64) (storage.Brand, error)
	UpdateBrand(ctx context.Context, id string, u storage.BrandUpdate) (storage.Brand, error)
	DeleteBrand(ctx context.Context, id string) error
}

type Logger interface {
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

type Service struct {
	store Store
	cache *cache.Cache
	log   Logger
	ttl   time.Duration
}

type Option func(*Service)

func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithListingTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func New(store Store, c *cache.Cache, opts ...Option) *Service {
	s := &Service{store: store, cache: c, log: nopLogger{}, ttl: DefaultListingTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validPercentage(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 100
}

// List returns every brand, percentage descending.
func (s *Service) List(ctx context.Context) ([]storage.Brand, error) {
	list, err := cache.GetOrLoad(ctx, s.cache, cache.Key(categoryBrands), s.ttl, func(ctx context.Context) ([]storage.Brand, error) {
		return s.store.ListBrands(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list phone brands: %w", err)
	}
	return append([]storage.Brand{}, list...), nil
}

func (s *Service) Create(ctx context.Context, name string, percentage float64) (storage.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.Brand{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !validPercentage(percentage) {
		return storage.Brand{}, fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalid)
	}

	b, err := s.store.CreateBrand(ctx, name, percentage)
	if errors.Is(err, storage.ErrConflict) {
		return storage.Brand{}, ErrDuplicateName
	}
	if err != nil {
		return storage.Brand{}, fmt.Errorf("create phone brand: %w", err)
	}
	s.invalidate()
	s.log.Infof("Created phone brand %q (%v%%)", b.Name, b.Percentage)
	return b, nil
}

// Update applies the non-nil fields. A missing brand yields (nil, nil).
func (s *Service) Update(ctx context.Context, id string, u storage.BrandUpdate) (*storage.Brand, error) {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalid)
		}
		u.Name = &name
	}
	if u.Percentage != nil && !validPercentage(*u.Percentage) {
		return nil, fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalid)
	}

	b, err := s.store.UpdateBrand(ctx, id, u)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil
	case errors.Is(err, storage.ErrConflict):
		return nil, ErrDuplicateName
	case err != nil:
		return nil, fmt.Errorf("update phone brand %s: %w", id, err)
	}
	s.invalidate()
	s.log.Infof("Updated phone brand %s", id)
	return &b, nil
}

// Delete reports whether a brand was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	err := s.store.DeleteBrand(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete phone brand %s: %w", id, err)
	}
	s.invalidate()
	s.log.Infof("Deleted phone brand %s", id)
	return true, nil
}

func (s *Service) invalidate() {
	n := s.cache.InvalidatePath(cache.Key(categoryBrands))
	s.log.Debugf("Dropped %d cached phone brand listings", n)
}
