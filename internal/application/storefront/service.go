package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

const defaultLocaleTTL = 10 * time.Minute

// Service resolves storefront product views.
type Service struct {
	catalog   ProductLookup
	content   ContentSource
	logger    *zap.Logger
	localeTTL time.Duration
	now       func() time.Time

	mu        sync.Mutex
	locales   []Locale
	matcher   language.Matcher
	fetchedAt time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLocaleTTL sets how long the CMS locale list is cached
func WithLocaleTTL(ttl time.Duration) Option {
	return func(s *Service) { s.localeTTL = ttl }
}

// NewService creates a Service. content may be nil, in which case views
// always come from the catalog.
func NewService(catalog ProductLookup, content ContentSource, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		catalog:   catalog,
		content:   content,
		logger:    log.Named("storefront"),
		localeTTL: defaultLocaleTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Product returns the view of the product with handle. CMS title and
// description win when the CMS has an entry in the negotiated locale; any
// CMS failure falls back to the catalog content.
func (s *Service) Product(ctx context.Context, handle, locale, acceptLanguage string) (*ProductView, error) {
	if handle == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Product handle is required")
	}
	p, err := s.catalog.ProductByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	view := newProductView(p)
	if s.content == nil {
		return view, nil
	}

	view.Locale = s.NegotiateLocale(ctx, locale, acceptLanguage)
	content, err := s.content.ProductContent(ctx, p.ID, view.Locale)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return view, nil
	case err != nil:
		logger.L(ctx, s.logger).Warn("cms content unavailable, serving catalog content",
			zap.String("product_id", p.ID),
			zap.String("locale", view.Locale),
			zap.Error(err),
		)
		return view, nil
	}

	view.Source = SourceCMS
	if content.Title != "" {
		view.Title = content.Title
	}
	if content.Description != "" {
		view.Description = content.Description
	}
	return view, nil
}

// NegotiateLocale picks the CMS locale for a request. An explicit locale
// is tried first, then the Accept-Language header, then the CMS default.
// Without CMS locales the explicit locale is returned as given.
func (s *Service) NegotiateLocale(ctx context.Context, requested, acceptLanguage string) string {
	locales, matcher, _ := s.cachedLocales(ctx)
	if len(locales) == 0 {
		return requested
	}

	if requested != "" {
		if tag, err := language.Parse(requested); err == nil {
			if _, idx, conf := matcher.Match(tag); conf != language.No {
				return locales[idx].Code
			}
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			if _, idx, conf := matcher.Match(tags...); conf != language.No {
				return locales[idx].Code
			}
		}
	}
	return locales[0].Code
}

// Locales returns the CMS locales, default first.
func (s *Service) Locales(ctx context.Context) ([]Locale, error) {
	locales, _, err := s.cachedLocales(ctx)
	if err != nil {
		return nil, err
	}
	return append([]Locale(nil), locales...), nil
}

// cachedLocales returns the locale list ordered default first, and a
// matcher over it. A failed refresh keeps serving the previous list.
func (s *Service) cachedLocales(ctx context.Context) ([]Locale, language.Matcher, error) {
	if s.content == nil {
		return nil, nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locales != nil && s.now().Sub(s.fetchedAt) < s.localeTTL {
		return s.locales, s.matcher, nil
	}

	fetched, err := s.content.Locales(ctx)
	if err != nil {
		logger.L(ctx, s.logger).Warn("failed to load cms locales", zap.Error(err))
		if s.locales != nil {
			return s.locales, s.matcher, nil
		}
		return nil, nil, err
	}

	ordered := make([]Locale, 0, len(fetched))
	for _, l := range fetched {
		if l.Default {
			ordered = append(ordered, l)
		}
	}
	for _, l := range fetched {
		if !l.Default {
			ordered = append(ordered, l)
		}
	}

	tags := make([]language.Tag, 0, len(ordered))
	locales := make([]Locale, 0, len(ordered))
	for _, l := range ordered {
		tag, err := language.Parse(l.Code)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		locales = append(locales, l)
	}

	s.locales = locales
	s.matcher = language.NewMatcher(tags)
	s.fetchedAt = s.now()
	return s.locales, s.matcher, nil
}

func newProductView(p *productsync.CommittedProduct) *ProductView {
	view := &ProductView{
		ID:          p.ID,
		Handle:      p.Handle,
		Title:       p.Title,
		Description: p.Description,
		Thumbnail:   p.Thumbnail,
		Source:      SourceCatalog,
		Options:     make([]OptionView, 0, len(p.Options)),
		Variants:    make([]VariantView, 0, len(p.Variants)),
	}
	for _, o := range p.Options {
		ov := OptionView{ID: o.ID, Title: o.Title, Values: make([]string, 0, len(o.Values))}
		for _, v := range o.Values {
			ov.Values = append(ov.Values, v.Value)
		}
		view.Options = append(view.Options, ov)
	}
	for _, v := range p.Variants {
		view.Variants = append(view.Variants, VariantView{ID: v.ID, Title: v.Title, SKU: v.SKU})
	}
	return view
}
