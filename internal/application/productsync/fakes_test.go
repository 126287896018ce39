package productsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
)

func erpProducts(n int) []productsync.ExternalProduct {
	out := make([]productsync.ExternalProduct, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, productsync.ExternalProduct{
			ID:          int64(i),
			DisplayName: "Product " + strconv.Itoa(i),
			IsPublished: true,
			WebsiteURL:  "/shop/product-" + strconv.Itoa(i),
			Price:       decimal.NewFromInt(int64(i)),
			Currency:    productsync.CurrencyRef{ID: 1, DisplayName: "USD"},
			Active:      true,
		})
	}
	return out
}

// fakeERP serves products in offset/limit windows.
type fakeERP struct {
	mu       sync.Mutex
	products []productsync.ExternalProduct
	pages    []productsync.Pagination
	sessions []productsync.Session
	failAt   int
	err      error
}

func (f *fakeERP) Authenticate(context.Context) (productsync.Session, error) {
	return productsync.Session{UID: 2}, nil
}

func (f *fakeERP) ListProducts(_ context.Context, session productsync.Session, _ productsync.Filter, page productsync.Pagination) ([]productsync.ExternalProduct, productsync.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	f.sessions = append(f.sessions, session)
	if f.failAt > 0 && len(f.pages) == f.failAt {
		return nil, session, f.err
	}
	if page.Offset >= len(f.products) {
		return nil, productsync.Session{UID: 2}, nil
	}
	end := min(page.Offset+page.Limit, len(f.products))
	batch := make([]productsync.ExternalProduct, end-page.Offset)
	copy(batch, f.products[page.Offset:end])
	return batch, productsync.Session{UID: 2}, nil
}

// memoryCatalog is an in-memory catalog keyed by external id.
type memoryCatalog struct {
	mu        sync.Mutex
	products  map[string]productsync.DomainProduct
	refs      productsync.StoreRefs
	refsErr   error
	createErr error
	updateErr error
	creates   int
	updates   int
	nextID    int
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		products: map[string]productsync.DomainProduct{},
		refs:     productsync.StoreRefs{SalesChannelID: "sc_1", ShippingProfileID: "sp_1"},
	}
}

func (c *memoryCatalog) QueryProducts(_ context.Context, ids []string) ([]productsync.ExistingProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []productsync.ExistingProduct
	for _, id := range ids {
		p, ok := c.products[id]
		if !ok {
			continue
		}
		e := productsync.ExistingProduct{ID: p.ID, ExternalID: p.ExternalID}
		for _, v := range p.Variants {
			e.Variants = append(e.Variants, productsync.ExistingVariant{ID: v.ID, SKU: v.SKU})
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *memoryCatalog) StoreRefs(context.Context) (productsync.StoreRefs, error) {
	return c.refs, c.refsErr
}

func (c *memoryCatalog) CreateProducts(_ context.Context, products []productsync.DomainProduct) ([]productsync.CommittedProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	var out []productsync.CommittedProduct
	for _, p := range products {
		if _, ok := c.products[p.ExternalID]; ok {
			return nil, fmt.Errorf("%w: duplicate external id %s", productsync.ErrDispatch, p.ExternalID)
		}
		c.nextID++
		p.ID = fmt.Sprintf("prod_%d", c.nextID)
		for i := range p.Variants {
			p.Variants[i].ID = fmt.Sprintf("%s_variant_%d", p.ID, i)
		}
		c.products[p.ExternalID] = p
		c.creates++
		out = append(out, committed(p))
	}
	return out, nil
}

func (c *memoryCatalog) UpdateProducts(_ context.Context, products []productsync.DomainProduct) ([]productsync.CommittedProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	var out []productsync.CommittedProduct
	for _, p := range products {
		existing, ok := c.products[p.ExternalID]
		if !ok || existing.ID != p.ID {
			return nil, fmt.Errorf("%w: unknown product %s", productsync.ErrDispatch, p.ID)
		}
		c.products[p.ExternalID] = p
		c.updates++
		out = append(out, committed(p))
	}
	return out, nil
}

func committed(p productsync.DomainProduct) productsync.CommittedProduct {
	return productsync.CommittedProduct{
		ID:         p.ID,
		ExternalID: p.ExternalID,
		Title:      p.Title,
		Handle:     p.Handle,
		Status:     p.Status,
		Thumbnail:  p.Thumbnail,
	}
}

// memoryRuns records every saved run state.
type memoryRuns struct {
	mu     sync.Mutex
	states []productsync.RunState
	runs   map[uuid.UUID]productsync.Run
	last   *productsync.Run
	err    error
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{runs: map[uuid.UUID]productsync.Run{}}
}

func (r *memoryRuns) Save(_ context.Context, run *productsync.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, run.State)
	if r.err != nil {
		return r.err
	}
	r.runs[run.ID] = *run
	cp := *run
	r.last = &cp
	return nil
}

func (r *memoryRuns) FindByID(_ context.Context, id uuid.UUID) (*productsync.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, productsync.ErrRunNotFound
	}
	return &run, nil
}

func (r *memoryRuns) Latest(context.Context) (*productsync.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil, productsync.ErrRunNotFound
	}
	cp := *r.last
	return &cp, nil
}

func (r *memoryRuns) List(_ context.Context, page, pageSize int) ([]*productsync.Run, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*productsync.Run
	for _, run := range r.runs {
		cp := run
		out = append(out, &cp)
	}
	return out, int64(len(r.runs)), nil
}

// memoryCache is a RunCache.
type memoryCache struct {
	run  *productsync.Run
	sets int
}

var errMiss = errors.New("cache miss")

func (c *memoryCache) Get(context.Context) (*productsync.Run, error) {
	if c.run == nil {
		return nil, errMiss
	}
	cp := *c.run
	return &cp, nil
}

func (c *memoryCache) Set(_ context.Context, run *productsync.Run) error {
	cp := *run
	c.run = &cp
	c.sets++
	return nil
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*productsync.ProductsSyncedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range events {
		p.events = append(p.events, e.(*productsync.ProductsSyncedEvent))
	}
	return p.err
}

// stubMedia returns one url per product.
type stubMedia struct {
	err error
}

func (m stubMedia) UploadProductImages(_ context.Context, p productsync.ExternalProduct) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []string{"https://cdn.example.com/products/" + p.ExternalID() + ".png"}, nil
}
