package voucher

import (
	"context"

	"github.com/go-faster/errors"
)

// Registry resolves voucher ids and codes to active vouchers.
//
// Resolution failures are expected in normal operation: a voucher stored
// against a cart may have been deactivated between application and checkout.
// Callers treat ErrNotFound as "proceed without discount".
type Registry struct {
	repo Repository
}

// NewRegistry creates a Registry backed by the given Repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// Resolve returns the active voucher with the given id. It returns
// ErrNotFound when the voucher is absent or deactivated.
func (r *Registry) Resolve(ctx context.Context, id string) (*Voucher, error) {
	v, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get voucher")
	}
	if !v.Active {
		return nil, ErrNotFound
	}
	return v, nil
}

// ResolveCode returns the active voucher with the given user-facing code.
func (r *Registry) ResolveCode(ctx context.Context, code string) (*Voucher, error) {
	v, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "find voucher")
	}
	if !v.Active {
		return nil, ErrNotFound
	}
	return v, nil
}

// Lookup returns the voucher regardless of its active flag. Order metadata
// attachment uses it: deactivation must not retroactively strip annotations
// from orders placed while the voucher was live.
func (r *Registry) Lookup(ctx context.Context, id string) (*Voucher, error) {
	v, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get voucher")
	}
	return v, nil
}

// Deactivate retires a voucher. Orders that already snapshot its discount
// percent are unaffected.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return errors.Wrap(err, "deactivate voucher")
	}
	return nil
}
