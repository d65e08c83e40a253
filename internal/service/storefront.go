package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Noobiez16/SubliGraphic/internal/checkout"
	"github.com/Noobiez16/SubliGraphic/internal/codec"
	"github.com/Noobiez16/SubliGraphic/internal/domain"
	"github.com/Noobiez16/SubliGraphic/internal/event"
	"github.com/Noobiez16/SubliGraphic/internal/payment"
	"github.com/Noobiez16/SubliGraphic/internal/store"
	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// DefaultMaxQuantityPerEntry is the maximum quantity of a single cart entry.
	DefaultMaxQuantityPerEntry = 100
	// DefaultMaxEntries is the maximum number of distinct entries in a cart.
	DefaultMaxEntries = 50
)

// Warnings surfaced alongside a successful response when the cart changed
// in memory but could not be saved.
const (
	WarningQuotaExceeded = "Your cart is too large to be saved on this device. Changes will be lost when the session ends."
	WarningNotSaved      = "Your cart could not be saved right now. Changes will be lost when the session ends."
)

// Catalog looks up products.
type Catalog interface {
	Product(id int64) (domain.Product, error)
	Products() []domain.Product
}

// Publisher emits storefront domain events. Failures are logged, never
// returned to the shopper.
type Publisher interface {
	PublishCartUpdated(ctx context.Context, userID string, entries []domain.CartEntry, total int64, count int, currency string) error
	PublishCartCleared(ctx context.Context, userID, reason string) error
	PublishCheckoutInitiated(ctx context.Context, userID string, s *checkout.Session) error
	PublishCheckoutSucceeded(ctx context.Context, userID string, s *checkout.Session) error
	PublishCheckoutFailed(ctx context.Context, userID string, s *checkout.Session) error
}

// Config tunes the service.
type Config struct {
	Currency            string
	MaxQuantityPerEntry int
	MaxEntries          int
	// PaymentTimeout bounds each provider call.
	PaymentTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.MaxQuantityPerEntry <= 0 {
		c.MaxQuantityPerEntry = DefaultMaxQuantityPerEntry
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.PaymentTimeout <= 0 {
		c.PaymentTimeout = 30 * time.Second
	}
}

// Deps are the collaborators of StorefrontService.
type Deps struct {
	Stores   store.Scoper
	Catalog  Catalog
	Payments *payment.Registry
	Events   Publisher
	Logger   *slog.Logger
	// IDs issues custom entry, session and attempt identities. Defaults to UUIDv7.
	IDs domain.IdentityGenerator
	Now func() time.Time
}

// CartView is what the shopper sees of a cart.
type CartView struct {
	Items     []domain.CartEntry `json:"items"`
	Total     int64              `json:"total"`
	ItemCount int                `json:"item_count"`
	Currency  string             `json:"currency"`
	// Degraded lists custom entries whose design could not be restored.
	Degraded []string `json:"degraded,omitempty"`
	Warning  string   `json:"warning,omitempty"`
}

// shopper is one owner's cart and checkout. Its mutex serialises every
// mutation together with the save that follows it.
type shopper struct {
	mu       sync.Mutex
	owner    string
	ledger   *domain.Ledger
	codec    *codec.Codec
	machine  *checkout.Machine
	hydrated bool
}

// StorefrontService owns the carts and checkout sessions of all shoppers.
// A shopper is created on first access by loading its persisted cart and
// lives for the rest of the process.
type StorefrontService struct {
	stores   store.Scoper
	catalog  Catalog
	payments *payment.Registry
	events   Publisher
	logger   *slog.Logger
	ids      domain.IdentityGenerator
	now      func() time.Time
	cfg      Config

	mu       sync.Mutex
	shoppers map[string]*shopper
}

// NewStorefrontService creates a new storefront service.
func NewStorefrontService(deps Deps, cfg Config) *StorefrontService {
	cfg.setDefaults()
	if deps.IDs == nil {
		deps.IDs = domain.UUIDv7Generator{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &StorefrontService{
		stores:   deps.Stores,
		catalog:  deps.Catalog,
		payments: deps.Payments,
		events:   deps.Events,
		logger:   deps.Logger,
		ids:      deps.IDs,
		now:      deps.Now,
		cfg:      cfg,
		shoppers: make(map[string]*shopper),
	}
}

// Products lists the catalog.
func (s *StorefrontService) Products() []domain.Product {
	return s.catalog.Products()
}

// Methods lists the payment methods offered at checkout.
func (s *StorefrontService) Methods() []payment.Method {
	return s.payments.Methods()
}

// acquire returns the owner's shopper locked and hydrated. The caller must
// unlock it.
func (s *StorefrontService) acquire(ctx context.Context, owner string) (*shopper, error) {
	if owner == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	s.mu.Lock()
	sh, ok := s.shoppers[owner]
	if !ok {
		sh = &shopper{
			owner:   owner,
			ledger:  domain.NewLedger(s.ids),
			codec:   codec.New(s.stores.Scope(owner), s.logger),
			machine: checkout.NewMachine(s.ids, s.now),
		}
		s.shoppers[owner] = sh
	}
	s.mu.Unlock()

	sh.mu.Lock()
	if sh.hydrated {
		return sh, nil
	}
	if err := s.hydrate(ctx, sh); err != nil {
		sh.mu.Unlock()
		return nil, err
	}
	return sh, nil
}

func (s *StorefrontService) hydrate(ctx context.Context, sh *shopper) error {
	res, err := sh.codec.Load(ctx)
	switch {
	case errors.Is(err, codec.ErrCorruptCart):
		s.logger.ErrorContext(ctx, "stored cart is corrupt, starting empty",
			slog.String("user_id", sh.owner),
			slog.String("error", err.Error()),
		)
		res = &codec.LoadResult{}
	case err != nil:
		return fmt.Errorf("load cart: %w", err)
	}

	if dropped := sh.ledger.Restore(res.Entries); dropped > 0 {
		s.logger.WarnContext(ctx, "dropped invalid stored cart entries",
			slog.String("user_id", sh.owner),
			slog.Int("dropped", dropped),
		)
	}
	if len(res.Missing) > 0 {
		degradedEntries.Add(float64(len(res.Missing)))
	}
	sh.hydrated = true

	s.logger.DebugContext(ctx, "cart hydrated",
		slog.String("user_id", sh.owner),
		slog.Int("entries", sh.ledger.Len()),
	)
	return nil
}

// persist saves the ledger. The in-memory cart stays authoritative when the
// save fails; the returned warning tells the shopper so.
func (s *StorefrontService) persist(ctx context.Context, sh *shopper) string {
	err := sh.codec.Save(ctx, sh.ledger.Entries())
	if err == nil {
		return ""
	}
	if errors.Is(err, apperrors.ErrStorageQuotaExceeded) {
		persistFailures.WithLabelValues("quota").Inc()
		s.logger.WarnContext(ctx, "cart not saved, storage quota exceeded",
			slog.String("user_id", sh.owner),
			slog.String("error", err.Error()),
		)
		return WarningQuotaExceeded
	}
	persistFailures.WithLabelValues("error").Inc()
	s.logger.ErrorContext(ctx, "cart not saved",
		slog.String("user_id", sh.owner),
		slog.String("error", err.Error()),
	)
	return WarningNotSaved
}

func (s *StorefrontService) view(sh *shopper, warning string) *CartView {
	entries := sh.ledger.Entries()
	v := &CartView{
		Items:     entries,
		Total:     sh.ledger.Total(),
		ItemCount: sh.ledger.ItemCount(),
		Currency:  s.cfg.Currency,
		Warning:   warning,
	}
	for _, e := range entries {
		if strings.HasPrefix(e.CustomDesignRef, codec.RefPrefix) {
			v.Degraded = append(v.Degraded, e.Identity)
		}
	}
	return v
}

// mutated saves the cart, publishes cart.updated and builds the response.
func (s *StorefrontService) mutated(ctx context.Context, sh *shopper, op string) *CartView {
	cartMutations.WithLabelValues(op).Inc()
	warning := s.persist(ctx, sh)
	v := s.view(sh, warning)

	if err := s.events.PublishCartUpdated(ctx, sh.owner, v.Items, v.Total, v.ItemCount, v.Currency); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", sh.owner),
			slog.String("error", err.Error()),
		)
	}
	return v
}

func (s *StorefrontService) ensureEditable(sh *shopper) error {
	if sh.machine.Active() {
		return apperrors.Conflict("the cart cannot change while checkout is in progress")
	}
	return nil
}

func (s *StorefrontService) ensureRoom(sh *shopper) error {
	if sh.ledger.Len() >= s.cfg.MaxEntries {
		return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", s.cfg.MaxEntries))
	}
	return nil
}

// GetCart returns the owner's cart.
func (s *StorefrontService) GetCart(ctx context.Context, owner string) (*CartView, error) {
	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	return s.view(sh, ""), nil
}

// AddStandard adds one unit of a catalog product as a plain entry.
func (s *StorefrontService) AddStandard(ctx context.Context, owner string, productID int64) (*CartView, error) {
	p, err := s.catalog.Product(productID)
	if err != nil {
		return nil, err
	}

	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	if err := s.ensureEditable(sh); err != nil {
		return nil, err
	}
	if e, ok := sh.ledger.Find(domain.PlainIdentity(p.ID)); ok {
		if e.Quantity >= s.cfg.MaxQuantityPerEntry {
			return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", s.cfg.MaxQuantityPerEntry))
		}
	} else if err := s.ensureRoom(sh); err != nil {
		return nil, err
	}

	e := sh.ledger.AddStandard(p)
	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", owner),
		slog.Int64("product_id", p.ID),
		slog.Int("quantity", e.Quantity),
	)
	return s.mutated(ctx, sh, "add_standard"), nil
}

// AddCustom adds a custom variant of a catalog product showing design, an
// inline image payload.
func (s *StorefrontService) AddCustom(ctx context.Context, owner string, productID int64, design string) (*CartView, error) {
	if !codec.IsInlinePayload(design) {
		return nil, apperrors.InvalidInput("design must be an inline base64 image")
	}
	p, err := s.catalog.Product(productID)
	if err != nil {
		return nil, err
	}

	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	if err := s.ensureEditable(sh); err != nil {
		return nil, err
	}
	if err := s.ensureRoom(sh); err != nil {
		return nil, err
	}

	e, err := sh.ledger.AddCustom(p, design)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "custom item added to cart",
		slog.String("user_id", owner),
		slog.Int64("product_id", p.ID),
		slog.String("identity", e.Identity),
		slog.Int("design_bytes", len(design)),
	)
	return s.mutated(ctx, sh, "add_custom"), nil
}

// SetQuantity sets an entry's quantity. Zero or less removes the entry;
// removing an absent entry is a no-op.
func (s *StorefrontService) SetQuantity(ctx context.Context, owner, identity string, quantity int) (*CartView, error) {
	if identity == "" {
		return nil, apperrors.InvalidInput("item identity is required")
	}
	if quantity > s.cfg.MaxQuantityPerEntry {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", s.cfg.MaxQuantityPerEntry))
	}

	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	if err := s.ensureEditable(sh); err != nil {
		return nil, err
	}
	if !sh.ledger.SetQuantity(identity, quantity) {
		if quantity > 0 {
			return nil, apperrors.NotFound("cart item", identity)
		}
		return s.view(sh, ""), nil
	}

	op := "set_quantity"
	if quantity <= 0 {
		op = "remove"
	}
	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", owner),
		slog.String("identity", identity),
		slog.Int("quantity", max(quantity, 0)),
	)
	return s.mutated(ctx, sh, op), nil
}

// RemoveItem removes an entry.
func (s *StorefrontService) RemoveItem(ctx context.Context, owner, identity string) (*CartView, error) {
	return s.SetQuantity(ctx, owner, identity, 0)
}

// ClearCart empties the cart.
func (s *StorefrontService) ClearCart(ctx context.Context, owner string) (*CartView, error) {
	sh, err := s.acquire(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer sh.mu.Unlock()

	if err := s.ensureEditable(sh); err != nil {
		return nil, err
	}

	sh.ledger.Clear()
	cartMutations.WithLabelValues("clear").Inc()
	v := s.view(sh, s.persist(ctx, sh))

	if err := s.events.PublishCartCleared(ctx, owner, event.ClearedByShopper); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", owner),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "cart cleared", slog.String("user_id", owner))
	return v, nil
}
