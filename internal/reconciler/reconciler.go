// Package reconciler keeps the persisted package set and custom collection
// memberships in line with the external lists.
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkgindex/pkgindex/internal/identity"
	"github.com/pkgindex/pkgindex/internal/listfetch"
	"github.com/pkgindex/pkgindex/internal/models"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
	"github.com/pkgindex/pkgindex/internal/store"
	"golang.org/x/sync/errgroup"
)

// MaxCustomCollectionSize caps collection membership; the first entries of
// the source list win.
const MaxCustomCollectionSize = 50

const (
	component          = "reconciler"
	defaultConcurrency = 4
)

// ErrUnknownCollection is returned for a collection the collection index
// does not list. It matches listfetch.ErrFetchFailed.
var ErrUnknownCollection = fmt.Errorf("unknown custom collection: %w", listfetch.ErrFetchFailed)

// MainResult summarises a main list reconcile.
type MainResult struct {
	// PackageList is the fetched main list minus denied entries, deduplicated
	// and in source order.
	PackageList []string
	Added       []string
	Deleted     []string
}

// Reconciler applies fetched lists to the store. ReconcileMain must not run
// concurrently with itself; collection reconciles may.
type Reconciler struct {
	store       store.Store
	source      listfetch.Source
	concurrency int
	locks       *keyedMutex
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithConcurrency bounds how many custom collections reconcile at once.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func New(st store.Store, src listfetch.Source, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:       st,
		source:      src,
		concurrency: defaultConcurrency,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs the main list reconcile followed by every custom collection.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	res, err := r.ReconcileMain(ctx)
	if err != nil {
		return err
	}
	_, err = r.ReconcileCustomCollections(ctx, res.PackageList)
	return err
}

// ReconcileMain adds packages new to the main list and deletes packages
// that left it or are denied. Nothing is written unless both lists were
// fetched.
func (r *Reconciler) ReconcileMain(ctx context.Context) (*MainResult, error) {
	log := logging.From(ctx)

	var fetched, denied []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fetched, err = r.source.FetchPackageList(gctx)
		return asFetchFailed("package list", err)
	})
	g.Go(func() error {
		var err error
		denied, err = r.source.FetchPackageDenyList(gctx)
		return asFetchFailed("deny list", err)
	})
	if err := g.Wait(); err != nil {
		log.Error(component, "list fetch failed", "error", err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	denySet := identity.NewSet(denied...)
	full := identity.NewSet()
	for _, u := range fetched {
		if !denySet.Contains(u) {
			full.Add(u)
		}
	}

	res := &MainResult{PackageList: full.Refs()}
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		persistedURLs, err := tx.PackageURLs(ctx)
		if err != nil {
			return err
		}
		persisted := identity.NewSet(persistedURLs...)

		res.Added = full.Subtract(persisted)
		for _, u := range persistedURLs {
			if !full.Contains(u) {
				res.Deleted = append(res.Deleted, u)
			}
		}

		if err := tx.AddPackages(ctx, res.Added); err != nil {
			return err
		}
		return tx.DeletePackages(ctx, res.Deleted)
	})
	if err != nil {
		return nil, fmt.Errorf("apply main list: %w", err)
	}

	log.Info(component, "main list reconciled",
		"fetched", len(fetched),
		"denied", len(denied),
		"added", len(res.Added),
		"deleted", len(res.Deleted),
	)
	return res, nil
}

// ReconcileCustomCollections fetches the collection index and reconciles
// every collection concurrently, stopping at the first failure. It returns
// the number of collections in the index.
func (r *Reconciler) ReconcileCustomCollections(ctx context.Context, packageList []string) (int, error) {
	collections, err := r.source.FetchCustomCollections(ctx)
	if err != nil {
		return 0, asFetchFailed("custom collections", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, d := range collections {
		g.Go(func() error {
			return r.ReconcileCustomCollection(gctx, packageList, d)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(collections), nil
}

// ReconcileCollectionByName reconciles a single collection listed in the
// collection index against the packages currently in the store.
func (r *Reconciler) ReconcileCollectionByName(ctx context.Context, name string) error {
	collections, err := r.source.FetchCustomCollections(ctx)
	if err != nil {
		return asFetchFailed("custom collections", err)
	}
	for _, d := range collections {
		if d.Name != name {
			continue
		}
		packageList, err := r.store.PackageURLs(ctx)
		if err != nil {
			return err
		}
		return r.ReconcileCustomCollection(ctx, packageList, d)
	}
	return fmt.Errorf("%q: %w", name, ErrUnknownCollection)
}

// ReconcileCustomCollection sets the membership of one collection to its
// source list, restricted to packageList and capped at
// MaxCustomCollectionSize.
func (r *Reconciler) ReconcileCustomCollection(ctx context.Context, packageList []string, details listfetch.CollectionDetails) error {
	unlock := r.locks.Lock(details.Name)
	defer unlock()

	urls, err := r.source.FetchCustomCollection(ctx, details.URL)
	if err != nil {
		return asFetchFailed(fmt.Sprintf("custom collection %q", details.Name), err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	members := identity.NewSet(urls...).Filter(identity.NewSet(packageList...))
	if len(members) > MaxCustomCollectionSize {
		members = members[:MaxCustomCollectionSize]
	}

	err = r.store.Transaction(ctx, func(tx store.Store) error {
		c := &models.CustomCollection{
			Name:        details.Name,
			URL:         details.URL,
			Description: details.Description,
			Badge:       details.Badge,
		}
		if err := tx.UpsertCustomCollection(ctx, c); err != nil {
			return err
		}

		pkgs, err := tx.PackagesByURL(ctx, members)
		if err != nil {
			return err
		}
		byKey := make(map[identity.Key]uuid.UUID, len(pkgs))
		for _, p := range pkgs {
			byKey[identity.Normalize(p.URL)] = p.ID
		}
		ids := make([]uuid.UUID, 0, len(members))
		for _, u := range members {
			if id, ok := byKey[identity.Normalize(u)]; ok {
				ids = append(ids, id)
			}
		}
		return tx.ReplaceMembership(ctx, c.ID, ids)
	})
	if err != nil {
		return fmt.Errorf("apply custom collection %q: %w", details.Name, err)
	}

	logging.From(ctx).Info(component, "custom collection reconciled",
		"collection", details.Name,
		"fetched", len(urls),
		"members", len(members),
	)
	return nil
}

// asFetchFailed makes sure source errors match listfetch.ErrFetchFailed.
func asFetchFailed(what string, err error) error {
	if err == nil || errors.Is(err, listfetch.ErrFetchFailed) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", listfetch.ErrFetchFailed, what, err)
}
