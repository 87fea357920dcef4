package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
	"github.com/frantsuz-club/ticket-bot/internal/order"
	"github.com/frantsuz-club/ticket-bot/internal/reservation"
	"github.com/frantsuz-club/ticket-bot/internal/session"
)

type resStore struct {
	mu       sync.Mutex
	capacity map[uuid.UUID]int
	rows     map[uuid.UUID]domain.Reservation
}

func newResStore() *resStore {
	return &resStore{
		capacity: make(map[uuid.UUID]int),
		rows:     make(map[uuid.UUID]domain.Reservation),
	}
}

func (s *resStore) active(eventID uuid.UUID) int {
	n := 0
	for _, r := range s.rows {
		if r.EventID == eventID && r.Status != domain.ReservationCancelled {
			n++
		}
	}
	return n
}

func (s *resStore) InsertPending(ctx context.Context, res domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit, ok := s.capacity[res.EventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if s.active(res.EventID) >= limit {
		return domain.ErrCapacityExceeded
	}
	s.rows[res.ID] = res
	return nil
}

func (s *resStore) InsertReinstated(ctx context.Context, res domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[res.ID] = res
	return nil
}

func (s *resStore) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (s *resStore) TransitionReservation(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	s.rows[id] = r
	return true, nil
}

func (s *resStore) AttachPaymentRef(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != domain.ReservationPending {
		return false, nil
	}
	r.PaymentRef = ref
	s.rows[id] = r
	return true, nil
}

func (s *resStore) statusCounts(eventID uuid.UUID) map[domain.ReservationStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[domain.ReservationStatus]int{}
	for _, r := range s.rows {
		if r.EventID == eventID {
			counts[r.Status]++
		}
	}
	return counts
}

type ordStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]domain.Order
	finalized map[uuid.UUID][]byte
}

func newOrdStore() *ordStore {
	return &ordStore{
		orders:    make(map[uuid.UUID]domain.Order),
		finalized: make(map[uuid.UUID][]byte),
	}
}

func (s *ordStore) CreateOrder(ctx context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *ordStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (s *ordStore) SetOrderPaymentRef(ctx context.Context, id uuid.UUID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	o.PaymentRef = ref
	s.orders[id] = o
	return nil
}

func (s *ordStore) MarkOrderFailed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != domain.OrderPending {
		return domain.ErrInvalidState
	}
	o.Status = domain.OrderFailed
	s.orders[id] = o
	return nil
}

func (s *ordStore) FinalizeOrder(ctx context.Context, id uuid.UUID, notice []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != domain.OrderPending {
		return false, nil
	}
	o.Status = domain.OrderPaid
	s.orders[id] = o
	s.finalized[id] = notice
	return true, nil
}

type fakeGateway struct {
	mu         sync.Mutex
	createErr  error
	status     domain.PaymentStatus
	statusErr  error
	invoiceSeq int
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (domain.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return domain.Invoice{}, g.createErr
	}
	g.invoiceSeq++
	return domain.Invoice{ID: "inv-1", PayURL: "https://pay.example.com/bill/inv-1/"}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, invoiceID string) (domain.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

func (g *fakeGateway) setStatus(status domain.PaymentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

type fakeCatalog struct {
	events map[uuid.UUID]domain.Event
}

func (c *fakeCatalog) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	ev, ok := c.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &ev, nil
}

type fixture struct {
	orch    *Orchestrator
	res     *resStore
	ord     *ordStore
	gateway *fakeGateway
	eventID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	return newFixtureSessions(t, session.NewMemoryStore(time.Hour))
}

func newFixtureSessions(t *testing.T, sessions session.Store) *fixture {
	t.Helper()

	eventID := uuid.New()
	res := newResStore()
	res.capacity[eventID] = 10
	ord := newOrdStore()
	gateway := &fakeGateway{status: domain.PaymentNotPaid}
	catalog := &fakeCatalog{events: map[uuid.UUID]domain.Event{
		eventID: {ID: eventID, Title: "Джазовый вечер", Price: 1000, Capacity: 10},
	}}

	logger := observability.NewLogger()
	orch := NewOrchestrator(
		sessions,
		reservation.NewManager(res, logger),
		order.NewAggregator(ord),
		gateway,
		catalog,
		NopAudit{},
		5*time.Minute,
		logger,
	)
	return &fixture{orch: orch, res: res, ord: ord, gateway: gateway, eventID: eventID}
}

// runToInvoice walks a chat through add-to-cart and the full contact
// sequence, returning the created invoice step.
func (f *fixture) runToInvoice(t *testing.T, chatID int64, tickets int) *InvoiceReady {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < tickets; i++ {
		if _, err := f.orch.AddToCart(ctx, chatID, f.eventID); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.orch.StartCheckout(ctx, chatID); err != nil {
		t.Fatal(err)
	}
	step, err := f.orch.SubmitText(ctx, chatID, "Иван Петров")
	if err != nil {
		t.Fatal(err)
	}
	if step.Next != PromptPhone {
		t.Fatalf("expected phone prompt, got %v", step.Next)
	}
	step, err = f.orch.SubmitText(ctx, chatID, "+7 916 123-45-67")
	if err != nil {
		t.Fatal(err)
	}
	if step.Next != PromptEmail {
		t.Fatalf("expected email prompt, got %v", step.Next)
	}
	step, err = f.orch.SubmitText(ctx, chatID, "ivan@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if step.Invoice == nil {
		t.Fatal("expected an invoice")
	}
	return step.Invoice
}

func TestAddToCartAccumulates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	line, err := f.orch.AddToCart(ctx, 1, f.eventID)
	if err != nil {
		t.Fatal(err)
	}
	if line.Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", line.Quantity)
	}

	line, err = f.orch.AddToCart(ctx, 1, f.eventID)
	if err != nil {
		t.Fatal(err)
	}
	if line.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", line.Quantity)
	}
	if len(line.ReservationIDs) != 2 {
		t.Fatalf("quantity must equal reservation count, got %d ids", len(line.ReservationIDs))
	}

	view, err := f.orch.Cart(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if view.Quantity != 2 || view.Total != 2000 {
		t.Fatalf("expected 2 tickets for 2000, got %d for %.0f", view.Quantity, view.Total)
	}
}

func TestDecrementReleasesReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.orch.AddToCart(ctx, 1, f.eventID)
	f.orch.AddToCart(ctx, 1, f.eventID)

	line, err := f.orch.DecrementCart(ctx, 1, f.eventID)
	if err != nil {
		t.Fatal(err)
	}
	if line.Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", line.Quantity)
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPending] != 1 || counts[domain.ReservationCancelled] != 1 {
		t.Fatalf("expected one pending and one cancelled, got %v", counts)
	}
}

func TestClearCartReleasesAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.orch.AddToCart(ctx, 1, f.eventID)
	f.orch.AddToCart(ctx, 1, f.eventID)

	if err := f.orch.ClearCart(ctx, 1); err != nil {
		t.Fatal(err)
	}

	view, err := f.orch.Cart(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if view.Quantity != 0 {
		t.Fatalf("expected empty cart, got %d", view.Quantity)
	}
	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationCancelled] != 2 || counts[domain.ReservationPending] != 0 {
		t.Fatalf("expected all reservations released, got %v", counts)
	}
}

func TestStartCheckoutEmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.orch.StartCheckout(ctx, 1); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestAddToCartDuringCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.orch.AddToCart(ctx, 1, f.eventID)
	if err := f.orch.StartCheckout(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orch.AddToCart(ctx, 1, f.eventID); !errors.Is(err, domain.ErrCheckoutInProgress) {
		t.Fatalf("expected ErrCheckoutInProgress, got %v", err)
	}
}

func TestInvalidPhoneKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.orch.AddToCart(ctx, 1, f.eventID)
	f.orch.StartCheckout(ctx, 1)
	if _, err := f.orch.SubmitText(ctx, 1, "Иван Петров"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.orch.SubmitText(ctx, 1, "12345"); !errors.Is(err, domain.ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}

	// The same field can be answered again; the name survives.
	step, err := f.orch.SubmitText(ctx, 1, "89161234567")
	if err != nil {
		t.Fatal(err)
	}
	if step.Next != PromptEmail {
		t.Fatalf("expected email prompt after retry, got %v", step.Next)
	}
}

func TestInvoiceCreated(t *testing.T) {
	f := newFixture(t)
	inv := f.runToInvoice(t, 1, 2)

	if inv.Total != 2000 {
		t.Fatalf("expected total 2000, got %.0f", inv.Total)
	}
	if inv.PayURL == "" || inv.InvoiceID != "inv-1" {
		t.Fatalf("unexpected invoice: %+v", inv)
	}

	ord, err := f.ord.GetOrder(context.Background(), inv.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if ord.PaymentRef != "inv-1" {
		t.Fatalf("order missing payment ref: %+v", ord)
	}
	if ord.Customer.Phone != "+79161234567" {
		t.Fatalf("expected normalized phone, got %q", ord.Customer.Phone)
	}
}

func TestInvoiceFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.createErr = domain.ErrGatewayUnavailable

	f.orch.AddToCart(ctx, 1, f.eventID)
	f.orch.AddToCart(ctx, 1, f.eventID)
	f.orch.StartCheckout(ctx, 1)
	f.orch.SubmitText(ctx, 1, "Иван Петров")
	f.orch.SubmitText(ctx, 1, "+79161234567")

	_, err := f.orch.SubmitText(ctx, 1, "ivan@example.com")
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationCancelled] != 2 || counts[domain.ReservationPending] != 0 {
		t.Fatalf("expected all reservations cancelled, got %v", counts)
	}
	for _, o := range f.ord.orders {
		if o.Status != domain.OrderFailed {
			t.Fatalf("expected FAILED order, got %s", o.Status)
		}
	}
	sess, _ := f.orch.sessions.Get(ctx, 1)
	if sess != nil {
		t.Fatal("session must be destroyed after a failed invoice")
	}
}

func TestPollNotPaidKeepsHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runToInvoice(t, 1, 1)

	result, err := f.orch.PollPayment(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != PollNotPaid {
		t.Fatalf("expected PollNotPaid, got %v", result.Outcome)
	}
	if result.Remaining <= 0 {
		t.Fatalf("expected remaining hold time, got %v", result.Remaining)
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPending] != 1 {
		t.Fatalf("pending reservation must survive an unpaid poll, got %v", counts)
	}
}

func TestPollPaidFinalizes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.runToInvoice(t, 1, 2)
	f.gateway.setStatus(domain.PaymentPaid)

	result, err := f.orch.PollPayment(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != PollPaid {
		t.Fatalf("expected PollPaid, got %v", result.Outcome)
	}
	if result.Email != "ivan@example.com" {
		t.Fatalf("expected customer email in result, got %q", result.Email)
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPaid] != 2 {
		t.Fatalf("expected both reservations paid, got %v", counts)
	}
	ord, _ := f.ord.GetOrder(ctx, inv.OrderID)
	if ord.Status != domain.OrderPaid {
		t.Fatalf("expected PAID order, got %s", ord.Status)
	}
	if len(f.ord.finalized) != 1 {
		t.Fatalf("expected exactly one enqueued notice, got %d", len(f.ord.finalized))
	}

	// The session is gone; polling again reports no active payment.
	if _, err := f.orch.PollPayment(ctx, 1); !errors.Is(err, domain.ErrNoActivePayment) {
		t.Fatalf("expected ErrNoActivePayment, got %v", err)
	}
}

func TestPollExpiredReleases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runToInvoice(t, 1, 1)

	f.orch.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	result, err := f.orch.PollPayment(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != PollExpired {
		t.Fatalf("expected PollExpired, got %v", result.Outcome)
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationCancelled] != 1 || counts[domain.ReservationPending] != 0 {
		t.Fatalf("expected reservation released, got %v", counts)
	}
}

func TestPollGatewayErrorChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runToInvoice(t, 1, 1)
	f.gateway.statusErr = domain.ErrGatewayUnavailable

	if _, err := f.orch.PollPayment(ctx, 1); err == nil {
		t.Fatal("expected an error")
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPending] != 1 {
		t.Fatalf("a gateway outage must not change reservations, got %v", counts)
	}
	sess, _ := f.orch.sessions.Get(ctx, 1)
	if sess == nil || sess.State != domain.StateAwaitingPayment {
		t.Fatal("session must stay in awaiting payment")
	}
}

func TestCancelReleasesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runToInvoice(t, 1, 2)

	result, err := f.orch.Cancel(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.AlreadyPaid {
		t.Fatal("unpaid cancel must not report AlreadyPaid")
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationCancelled] != 2 {
		t.Fatalf("expected both reservations cancelled, got %v", counts)
	}
	for _, o := range f.ord.orders {
		if o.Status != domain.OrderFailed {
			t.Fatalf("expected FAILED order, got %s", o.Status)
		}
	}
}

func TestCancelRacingPaidFinalizesInstead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.runToInvoice(t, 1, 1)
	f.gateway.setStatus(domain.PaymentPaid)

	result, err := f.orch.Cancel(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !result.AlreadyPaid {
		t.Fatal("expected AlreadyPaid")
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPaid] != 1 || counts[domain.ReservationCancelled] != 0 {
		t.Fatalf("a confirmed payment must win over cancellation, got %v", counts)
	}
	ord, _ := f.ord.GetOrder(ctx, inv.OrderID)
	if ord.Status != domain.OrderPaid {
		t.Fatalf("expected PAID order, got %s", ord.Status)
	}
}

func TestCancelGatewayErrorLeavesAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.runToInvoice(t, 1, 1)
	f.gateway.statusErr = domain.ErrGatewayUnavailable

	if _, err := f.orch.Cancel(ctx, 1); !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	// Nothing may be released while the payment outcome is unknown.
	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPending] != 1 || counts[domain.ReservationCancelled] != 0 {
		t.Fatalf("reservations must stay intact, got %v", counts)
	}
	for _, o := range f.ord.orders {
		if o.Status != domain.OrderPending {
			t.Fatalf("order must stay PENDING, got %s", o.Status)
		}
	}
	sess, _ := f.orch.sessions.Get(ctx, 1)
	if sess == nil || sess.State != domain.StateAwaitingPayment {
		t.Fatal("session must stay in awaiting payment")
	}

	// Once the gateway answers, the cancellation goes through.
	f.gateway.statusErr = nil
	if _, err := f.orch.Cancel(ctx, 1); err != nil {
		t.Fatal(err)
	}
	counts = f.res.statusCounts(f.eventID)
	if counts[domain.ReservationCancelled] != 1 {
		t.Fatalf("expected reservation released after retry, got %v", counts)
	}
}

// failingSessions fails the first Put that stores an awaiting-payment
// session, simulating a store outage at the worst possible moment.
type failingSessions struct {
	session.Store
	failed bool
}

func (s *failingSessions) Put(ctx context.Context, sess *domain.Session) error {
	if !s.failed && sess.State == domain.StateAwaitingPayment {
		s.failed = true
		return errors.New("session store unavailable")
	}
	return s.Store.Put(ctx, sess)
}

func TestSessionWriteFailureAfterInvoiceCompensates(t *testing.T) {
	ctx := context.Background()
	sessions := &failingSessions{Store: session.NewMemoryStore(time.Hour)}
	f := newFixtureSessions(t, sessions)

	f.orch.AddToCart(ctx, 1, f.eventID)
	f.orch.StartCheckout(ctx, 1)
	f.orch.SubmitText(ctx, 1, "Иван Петров")
	f.orch.SubmitText(ctx, 1, "+79161234567")

	if _, err := f.orch.SubmitText(ctx, 1, "ivan@example.com"); err == nil {
		t.Fatal("expected an error from the failing session write")
	}

	// No payable order the user never saw may survive.
	for _, o := range f.ord.orders {
		if o.Status == domain.OrderPending {
			t.Fatalf("orphaned pending order: %+v", o)
		}
	}
	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPending] != 0 {
		t.Fatalf("expected all reservations released, got %v", counts)
	}
	sess, _ := f.orch.sessions.Get(ctx, 1)
	if sess != nil {
		t.Fatal("session must be destroyed after compensation")
	}

	// The user can start over cleanly; only one live order ever exists.
	f.orch.AddToCart(ctx, 1, f.eventID)
	f.orch.StartCheckout(ctx, 1)
	f.orch.SubmitText(ctx, 1, "Иван Петров")
	f.orch.SubmitText(ctx, 1, "+79161234567")
	step, err := f.orch.SubmitText(ctx, 1, "ivan@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if step.Invoice == nil {
		t.Fatal("expected an invoice on retry")
	}
	pending := 0
	for _, o := range f.ord.orders {
		if o.Status == domain.OrderPending {
			pending++
		}
	}
	if pending != 1 {
		t.Fatalf("expected exactly one pending order after retry, got %d", pending)
	}
}

func TestCancelWithoutSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.orch.Cancel(ctx, 404); err != nil {
		t.Fatalf("cancel without a session must be a no-op, got %v", err)
	}
}

func TestFinalizeReinstatesCancelledReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.runToInvoice(t, 1, 1)

	// A racing sweep cancels the reservation while payment completes.
	sess, _ := f.orch.sessions.Get(ctx, 1)
	for _, id := range sess.Reservations {
		f.res.TransitionReservation(ctx, id, domain.ReservationPending, domain.ReservationCancelled)
	}
	f.gateway.setStatus(domain.PaymentPaid)

	result, err := f.orch.PollPayment(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Outcome != PollPaid {
		t.Fatalf("expected PollPaid, got %v", result.Outcome)
	}

	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPaid] != 1 {
		t.Fatalf("expected a reinstated paid reservation, got %v", counts)
	}
	ord, _ := f.ord.GetOrder(ctx, inv.OrderID)
	if ord.Status != domain.OrderPaid {
		t.Fatalf("expected PAID order, got %s", ord.Status)
	}
}

func TestDoubleTapAddToCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.orch.AddToCart(ctx, 1, f.eventID)
		}()
	}
	wg.Wait()

	view, err := f.orch.Cart(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if view.Quantity != 2 {
		t.Fatalf("expected both taps recorded sequentially, got %d", view.Quantity)
	}
	counts := f.res.statusCounts(f.eventID)
	if counts[domain.ReservationPending] != 2 {
		t.Fatalf("expected two pending reservations, got %v", counts)
	}
}
