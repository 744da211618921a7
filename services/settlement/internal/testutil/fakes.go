// Package testutil — потокобезопасные in-memory реализации репозиториев и шлюза для unit-тестов.
// Все методы возвращают копии, чтобы тест не мог изменить состояние хранилища в обход API.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"example.com/settlement/services/settlement/internal/domain"
	"example.com/settlement/services/settlement/internal/gateway"
)

// =============================================================================
// OrderStore
// =============================================================================

// OrderStore — in-memory repository.OrderRepository с той же CAS семантикой, что у MySQL.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	CreateErr error
	GetErr    error
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*domain.Order)}
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.CouponID != nil {
		id := *o.CouponID
		c.CouponID = &id
	}
	return &c
}

func (s *OrderStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *OrderStore) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *OrderStore) TransitionPayment(_ context.Context, orderID string, from domain.PaymentStatus, status domain.OrderStatus, to domain.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.PaymentStatus != from || o.PaymentStatus == domain.PaymentStatusSucceeded {
		return domain.ErrPaymentAlreadySettled
	}
	o.Status = status
	o.PaymentStatus = to
	o.UpdatedAt = time.Now()
	return nil
}

func (s *OrderStore) ConfirmCOD(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.PaymentMethod != domain.PaymentMethodCOD || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusProcessing
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *OrderStore) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*domain.Order
	for _, o := range s.orders {
		if len(result) >= limit {
			break
		}
		if o.Status == domain.OrderStatusPending &&
			o.PaymentStatus == domain.PaymentStatusPending &&
			o.CreatedAt.Before(olderThan) {
			result = append(result, copyOrder(o))
		}
	}
	return result, nil
}

// Put кладёт заказ как есть, без изменения CreatedAt.
func (s *OrderStore) Put(order *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = copyOrder(order)
}

// Count возвращает количество заказов.
func (s *OrderStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// =============================================================================
// CatalogStore
// =============================================================================

// CatalogStore — in-memory repository.CatalogRepository.
type CatalogStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	Err      error
}

func NewCatalogStore(products ...domain.Product) *CatalogStore {
	s := &CatalogStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *CatalogStore) GetByIDs(_ context.Context, ids []string) ([]*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var result []*domain.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			c := p
			result = append(result, &c)
		}
	}
	return result, nil
}

// SetPrice меняет цену товара (проверка заморозки цены в заказе).
func (s *CatalogStore) SetPrice(id string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Price = decimal.NewNullDecimal(price)
	s.products[id] = p
}

// =============================================================================
// CouponStore
// =============================================================================

// CouponStore — in-memory repository.CouponRepository.
type CouponStore struct {
	mu      sync.Mutex
	coupons map[string]domain.Coupon

	GetErr       error
	IncrementErr error
}

func NewCouponStore(coupons ...domain.Coupon) *CouponStore {
	s := &CouponStore{coupons: make(map[string]domain.Coupon)}
	for _, c := range coupons {
		s.coupons[c.ID] = c
	}
	return s
}

func (s *CouponStore) GetByID(_ context.Context, couponID string) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	c, ok := s.coupons[couponID]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	return &c, nil
}

func (s *CouponStore) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	normalized := domain.NormalizeCouponCode(code)
	for _, c := range s.coupons {
		if c.Code == normalized {
			c := c
			return &c, nil
		}
	}
	return nil, domain.ErrCouponNotFound
}

func (s *CouponStore) IncrementUsage(_ context.Context, couponID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IncrementErr != nil {
		return s.IncrementErr
	}
	c, ok := s.coupons[couponID]
	if !ok || c.IsExhausted() {
		return domain.ErrCouponExhausted
	}
	c.UsedCount++
	s.coupons[couponID] = c
	return nil
}

// UsedCount возвращает used_count купона.
func (s *CouponStore) UsedCount(couponID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coupons[couponID].UsedCount
}

// =============================================================================
// AffiliateStore
// =============================================================================

type commissionKey struct {
	affiliateID string
	orderID     string
}

// AffiliateStore — in-memory repository.AffiliateRepository с уникальностью (affiliate_id, order_id).
type AffiliateStore struct {
	mu          sync.Mutex
	affiliates  map[string]domain.Affiliate
	commissions map[commissionKey]domain.AffiliateCommission

	GetErr         error
	AddEarningsErr error
}

func NewAffiliateStore(affiliates ...domain.Affiliate) *AffiliateStore {
	s := &AffiliateStore{
		affiliates:  make(map[string]domain.Affiliate),
		commissions: make(map[commissionKey]domain.AffiliateCommission),
	}
	for _, a := range affiliates {
		s.affiliates[a.ID] = a
	}
	return s
}

func (s *AffiliateStore) GetByCouponID(_ context.Context, couponID string) (*domain.Affiliate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	for _, a := range s.affiliates {
		if a.CouponID == couponID {
			a := a
			return &a, nil
		}
	}
	return nil, domain.ErrAffiliateNotFound
}

func (s *AffiliateStore) CreateCommission(_ context.Context, c *domain.AffiliateCommission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := commissionKey{affiliateID: c.AffiliateID, orderID: c.OrderID}
	if _, exists := s.commissions[key]; exists {
		return domain.ErrCommissionExists
	}
	c.CreatedAt = time.Now()
	s.commissions[key] = *c
	return nil
}

func (s *AffiliateStore) AddEarnings(_ context.Context, affiliateID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AddEarningsErr != nil {
		return s.AddEarningsErr
	}
	a, ok := s.affiliates[affiliateID]
	if !ok {
		return domain.ErrAffiliateNotFound
	}
	a.TotalEarnings = a.TotalEarnings.Add(amount)
	s.affiliates[affiliateID] = a
	return nil
}

func (s *AffiliateStore) ListCommissionsByOrder(_ context.Context, orderID string) ([]*domain.AffiliateCommission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*domain.AffiliateCommission
	for key, c := range s.commissions {
		if key.orderID == orderID {
			c := c
			result = append(result, &c)
		}
	}
	return result, nil
}

// Earnings возвращает total_earnings партнёра.
func (s *AffiliateStore) Earnings(affiliateID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.affiliates[affiliateID].TotalEarnings
}

// CommissionCount возвращает число записей комиссий.
func (s *AffiliateStore) CommissionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commissions)
}

// =============================================================================
// ProfileStore
// =============================================================================

// ProfileStore — in-memory repository.ProfileRepository.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	Err      error
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.Profile)}
}

func (s *ProfileStore) Upsert(_ context.Context, p *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *ProfileStore) Get(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// =============================================================================
// Gateway
// =============================================================================

// FakeGateway — управляемый платёжный шлюз.
type FakeGateway struct {
	mu       sync.Mutex
	attempts map[string][]gateway.PaymentAttempt

	CreateErr error
	FetchErr  error

	Created    []gateway.CreateOrderRequest
	FetchCalls int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{attempts: make(map[string][]gateway.PaymentAttempt)}
}

func (g *FakeGateway) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.Created = append(g.Created, req)
	return &gateway.Session{SessionToken: "session_" + req.OrderID, GatewayOrderID: "cf_" + req.OrderID}, nil
}

func (g *FakeGateway) FetchPayments(_ context.Context, orderID string) ([]gateway.PaymentAttempt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.FetchCalls++
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	return append([]gateway.PaymentAttempt(nil), g.attempts[orderID]...), nil
}

// SetAttempts задаёт попытки оплаты заказа.
func (g *FakeGateway) SetAttempts(orderID string, attempts ...gateway.PaymentAttempt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts[orderID] = attempts
}

// Fetches возвращает количество обращений к FetchPayments.
func (g *FakeGateway) Fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.FetchCalls
}

// =============================================================================
// Notifier
// =============================================================================

// FakeNotifier запоминает заказы, по которым отправлены уведомления.
type FakeNotifier struct {
	mu   sync.Mutex
	sent []string
	Err  error
}

func (n *FakeNotifier) SendOrderEmails(_ context.Context, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, orderID)
	return nil
}

// Sent возвращает копию списка отправленных уведомлений.
func (n *FakeNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}
