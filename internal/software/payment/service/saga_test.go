package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/domain/ride"
	"ridebook/internal/general/config"
	"ridebook/internal/general/logger"
	redisstore "ridebook/internal/general/redis"
)

// ----- hand-rolled fakes -----

type fakeUOW struct{}

func (f *fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePaymentRepo struct {
	saves      int
	createWant bool // returned by CreatePayment
	byID       map[string]*payment.Payment
	byRide     map[string]*payment.Payment
	due        []*payment.Payment
	stale      []*payment.Payment
}

func (f *fakePaymentRepo) CreatePayment(ctx context.Context, p *payment.Payment) (bool, error) {
	return f.createWant, nil
}

func (f *fakePaymentRepo) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, payment.ErrPaymentNotFound
}

func (f *fakePaymentRepo) GetByRideID(ctx context.Context, rideID string) (*payment.Payment, error) {
	if p, ok := f.byRide[rideID]; ok {
		return p, nil
	}
	return nil, payment.ErrPaymentNotFound
}

func (f *fakePaymentRepo) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return f.GetByID(ctx, id)
}

func (f *fakePaymentRepo) Save(ctx context.Context, p *payment.Payment) error {
	f.saves++
	return nil
}

func (f *fakePaymentRepo) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	return f.due, nil
}

func (f *fakePaymentRepo) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error) {
	return f.stale, nil
}

type paymentStatusCall struct {
	rideID string
	status ride.PaymentState
	txID   string
}

type fakeRideRepo struct {
	rides       map[string]*ride.Ride
	statusCalls []paymentStatusCall
}

func (f *fakeRideRepo) CreateRide(ctx context.Context, r *ride.Ride) error { return nil }

func (f *fakeRideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	if r, ok := f.rides[id]; ok {
		return r, nil
	}
	return nil, ride.ErrRideNotFound
}

func (f *fakeRideRepo) GetForUpdate(ctx context.Context, id string) (*ride.Ride, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRideRepo) SaveTransition(ctx context.Context, r *ride.Ride, entry ride.AuditEntry, eventData map[string]any) error {
	return nil
}

func (f *fakeRideRepo) SetPaymentStatus(ctx context.Context, rideID string, status ride.PaymentState, transactionID string) error {
	f.statusCalls = append(f.statusCalls, paymentStatusCall{rideID: rideID, status: status, txID: transactionID})
	return nil
}

func (f *fakeRideRepo) ListActive(ctx context.Context, limit int) ([]*ride.Ride, error) {
	return nil, nil
}

func (f *fakeRideRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*ride.Ride, error) {
	return nil, nil
}

type fakeWallet struct {
	balance    int64
	reserved   map[string]int64 // holdID -> amount
	reserveErr error
	releases   int
	onRelease  func()
}

func (f *fakeWallet) Balance(ctx context.Context, userID string) (int64, error) {
	return f.balance, nil
}

func (f *fakeWallet) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	f.balance += amount
	return f.balance, nil
}

func (f *fakeWallet) Reserve(ctx context.Context, userID, holdID string, amount int64) error {
	if f.reserveErr != nil {
		return f.reserveErr
	}
	if f.reserved == nil {
		f.reserved = map[string]int64{}
	}
	f.balance -= amount
	f.reserved[holdID] = amount
	return nil
}

func (f *fakeWallet) Capture(ctx context.Context, userID, holdID string) error {
	// the held money is consumed
	delete(f.reserved, holdID)
	return nil
}

func (f *fakeWallet) Release(ctx context.Context, userID, holdID string) error {
	f.releases++
	f.balance += f.reserved[holdID]
	delete(f.reserved, holdID)
	if f.onRelease != nil {
		f.onRelease()
	}
	return nil
}

type published struct {
	exchange   string
	routingKey string
}

type fakePublisher struct {
	events []published
}

func (f *fakePublisher) Publish(exchange, routingKey string, body []byte) error {
	f.events = append(f.events, published{exchange: exchange, routingKey: routingKey})
	return nil
}

func (f *fakePublisher) routingKeys() []string {
	keys := make([]string, len(f.events))
	for i, e := range f.events {
		keys[i] = e.routingKey
	}
	return keys
}

type fakeProvider struct {
	name      string
	chargeErr error
	charges   int
	refunds   int
	onRefund  func()
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Charge(ctx context.Context, p *payment.Payment) (string, error) {
	f.charges++
	if f.chargeErr != nil {
		return "", f.chargeErr
	}
	return "tx_test_1", nil
}

func (f *fakeProvider) Refund(ctx context.Context, p *payment.Payment, amount int64, reason string) error {
	f.refunds++
	if f.onRefund != nil {
		f.onRefund()
	}
	return nil
}

// ----- fixture -----

type sagaFixture struct {
	svc      *paymentService
	payRepo  *fakePaymentRepo
	rideRepo *fakeRideRepo
	wallet   *fakeWallet
	pub      *fakePublisher
	provider *fakeProvider
}

func newSagaFixture(t *testing.T, method payment.Method) (*sagaFixture, *payment.Payment) {
	t.Helper()

	p, err := payment.NewPayment("ride-1", "user-1", 100000, method)
	if err != nil {
		t.Fatalf("NewPayment: %v", err)
	}

	r, err := ride.NewRide("user-1", ride.Address{}, ride.Address{}, 100000, 1.0)
	if err != nil {
		t.Fatalf("NewRide: %v", err)
	}
	r.ID = "ride-1"

	cfg := &config.Config{}
	cfg.Payments.MaxRetries = 3
	cfg.Payments.RetryBaseSeconds = 30

	f := &sagaFixture{
		payRepo:  &fakePaymentRepo{},
		rideRepo: &fakeRideRepo{rides: map[string]*ride.Ride{"ride-1": r}},
		wallet:   &fakeWallet{balance: 1000000},
		pub:      &fakePublisher{},
		provider: &fakeProvider{name: "test_provider"},
	}
	f.svc = &paymentService{
		logger:   logger.New("payment-service-test"),
		cfg:      cfg,
		uow:      &fakeUOW{},
		payRepo:  f.payRepo,
		rideRepo: f.rideRepo,
		wallet:   f.wallet,
		pub:      f.pub,
		providers: map[payment.Method]Provider{
			method: f.provider,
		},
	}
	return f, p
}

func hasKey(keys []string, want string) bool {
	for _, k := range keys {
		if k == want {
			return true
		}
	}
	return false
}

// ----- tests -----

func TestRunSagaSuccess(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodCash)

	if err := f.svc.runSaga(context.Background(), p); err != nil {
		t.Fatalf("runSaga: %v", err)
	}

	if p.Status != payment.StatusCompleted {
		t.Errorf("status = %s, want completed", p.Status)
	}
	if p.SagaStatus != payment.SagaCompleted {
		t.Errorf("saga status = %s, want completed", p.SagaStatus)
	}
	if p.TransactionID != "tx_test_1" || p.Provider != "test_provider" {
		t.Errorf("charge outcome not recorded: tx=%q provider=%q", p.TransactionID, p.Provider)
	}
	if p.NextRetryAt != nil {
		t.Error("completed saga must not schedule a retry")
	}
	if p.CompletedAt == nil {
		t.Error("completed saga must stamp CompletedAt")
	}
	for _, step := range p.SagaSteps {
		if step.Status != payment.StepCompleted {
			t.Errorf("step %s = %s, want completed", step.Name, step.Status)
		}
	}

	if len(f.rideRepo.statusCalls) != 1 {
		t.Fatalf("SetPaymentStatus calls = %d, want 1", len(f.rideRepo.statusCalls))
	}
	call := f.rideRepo.statusCalls[0]
	if call.status != ride.PaymentCompleted || call.txID != "tx_test_1" {
		t.Errorf("ride marked %+v, want completed with tx_test_1", call)
	}

	keys := f.pub.routingKeys()
	if !hasKey(keys, "payment.receipt") || !hasKey(keys, "payment.completed") {
		t.Errorf("published %v, want receipt and completed", keys)
	}
}

func TestRunSagaChargeFailureCompensatesReservation(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodWallet)
	f.provider.chargeErr = errors.New("provider unavailable")

	err := f.svc.runSaga(context.Background(), p)
	if err == nil {
		t.Fatal("runSaga must surface the step failure")
	}

	if p.Status != payment.StatusFailed || p.SagaStatus != payment.SagaFailed {
		t.Errorf("status = %s/%s, want failed/failed", p.Status, p.SagaStatus)
	}
	if f.wallet.releases != 1 {
		t.Errorf("wallet releases = %d, want 1 (reservation must be returned)", f.wallet.releases)
	}
	if len(f.wallet.reserved) != 0 {
		t.Errorf("dangling holds: %v", f.wallet.reserved)
	}
	if len(f.rideRepo.statusCalls) != 0 {
		t.Errorf("ride payment status must not change on a failed charge: %v", f.rideRepo.statusCalls)
	}

	// transient failure schedules a retry with the base backoff
	if p.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", p.RetryCount)
	}
	if p.NextRetryAt == nil {
		t.Fatal("retryable failure must schedule NextRetryAt")
	}
	until := time.Until(*p.NextRetryAt)
	if until < 25*time.Second || until > 35*time.Second {
		t.Errorf("first backoff = %v, want about 30s", until)
	}

	if !hasKey(f.pub.routingKeys(), "payment.failed") {
		t.Errorf("published %v, want payment.failed", f.pub.routingKeys())
	}

	// validate_payment_details has no compensation and keeps its completed
	// status so the audit trail still shows it ran
	if p.SagaSteps[0].Status != payment.StepCompleted {
		t.Errorf("step %s = %s, want completed", p.SagaSteps[0].Name, p.SagaSteps[0].Status)
	}
	if p.SagaSteps[1].Status != payment.StepCompensated {
		t.Errorf("step %s = %s, want compensated", p.SagaSteps[1].Name, p.SagaSteps[1].Status)
	}
	if p.SagaSteps[2].Status != payment.StepFailed {
		t.Errorf("step %s = %s, want failed", p.SagaSteps[2].Name, p.SagaSteps[2].Status)
	}
}

func TestRunSagaInsufficientFundsIsNonRetryable(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodWallet)
	f.wallet.reserveErr = redisstore.ErrInsufficientFunds

	err := f.svc.runSaga(context.Background(), p)
	if !errors.Is(err, redisstore.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	if p.NextRetryAt != nil {
		t.Error("insufficient funds must not schedule a retry")
	}
	if p.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", p.RetryCount)
	}
	if f.provider.charges != 0 {
		t.Errorf("provider must never be charged after a failed reservation")
	}
}

func TestRunSagaDuplicatePaymentIsNonRetryable(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodCash)
	f.rideRepo.rides["ride-1"].Payment.Status = ride.PaymentCompleted

	err := f.svc.runSaga(context.Background(), p)
	if !errors.Is(err, payment.ErrDuplicatePayment) {
		t.Fatalf("want ErrDuplicatePayment, got %v", err)
	}
	if p.NextRetryAt != nil {
		t.Error("duplicate payment must not schedule a retry")
	}
}

func TestRunSagaMissingRideIsRetryable(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodCash)
	delete(f.rideRepo.rides, "ride-1")

	err := f.svc.runSaga(context.Background(), p)
	if !errors.Is(err, ride.ErrRideNotFound) {
		t.Fatalf("want ErrRideNotFound, got %v", err)
	}
	// the booking event may have outrun the ride insert; retry
	if p.NextRetryAt == nil {
		t.Error("missing ride must schedule a retry")
	}
}

func TestRunSagaCompensationRunsInReverseOrder(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodWallet)

	var order []string
	f.provider.onRefund = func() { order = append(order, "refund_charge") }
	f.wallet.onRelease = func() { order = append(order, "release_funds") }

	// fail at update_ride_payment_status after the charge succeeded
	f.svc.rideRepo = &failingAfterRideRepo{fakeRideRepo: f.rideRepo}

	err := f.svc.runSaga(context.Background(), p)
	if err == nil {
		t.Fatal("runSaga must fail on the ride status write")
	}

	if f.provider.refunds != 1 {
		t.Errorf("charge refunds = %d, want 1", f.provider.refunds)
	}
	if f.wallet.releases != 1 {
		t.Errorf("wallet releases = %d, want 1", f.wallet.releases)
	}
	if len(order) != 2 || order[0] != "refund_charge" || order[1] != "release_funds" {
		t.Errorf("compensation order = %v, want [refund_charge release_funds]", order)
	}
}

// failingAfterRideRepo fails every SetPaymentStatus write.
type failingAfterRideRepo struct {
	*fakeRideRepo
}

func (f *failingAfterRideRepo) SetPaymentStatus(ctx context.Context, rideID string, status ride.PaymentState, transactionID string) error {
	return errors.New("rides table unavailable")
}

func TestRunSagaWalletCompensationRestoresBalance(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodWallet)
	f.svc.providers[payment.MethodWallet] = &walletProvider{wallet: f.wallet}

	// fail after the wallet hold has been captured
	f.svc.rideRepo = &failingAfterRideRepo{fakeRideRepo: f.rideRepo}

	start := f.wallet.balance
	if err := f.svc.runSaga(context.Background(), p); err == nil {
		t.Fatal("runSaga must fail on the ride status write")
	}

	// the hold was consumed by the charge, so compensation must credit the
	// full captured amount back; anything less silently shorts the user
	if f.wallet.balance != start {
		t.Errorf("wallet balance = %d, want %d after full compensation", f.wallet.balance, start)
	}
	if len(f.wallet.reserved) != 0 {
		t.Errorf("dangling holds: %v", f.wallet.reserved)
	}
}

func TestRunSagaResumeSkipsCompletedSteps(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodCash)

	// a crashed run persisted its first three steps, charge included
	p.Status = payment.StatusProcessing
	p.SagaStatus = payment.SagaExecuting
	p.SagaSteps = pendingStepRecords(f.svc.sagaSteps(p))
	for i := 0; i < 3; i++ {
		p.SagaSteps[i].Status = payment.StepCompleted
	}
	p.TransactionID = "tx_prior"
	p.Provider = "test_provider"

	if err := f.svc.runSaga(context.Background(), p); err != nil {
		t.Fatalf("runSaga: %v", err)
	}

	if f.provider.charges != 0 {
		t.Errorf("charges = %d, resumed run must not charge again", f.provider.charges)
	}
	if p.Status != payment.StatusCompleted || p.TransactionID != "tx_prior" {
		t.Errorf("resumed saga = %s/%s, want completed with the prior transaction", p.Status, p.TransactionID)
	}
	if len(f.rideRepo.statusCalls) != 1 || f.rideRepo.statusCalls[0].txID != "tx_prior" {
		t.Errorf("ride status calls = %+v, want one with tx_prior", f.rideRepo.statusCalls)
	}
	if !hasKey(f.pub.routingKeys(), "payment.completed") {
		t.Errorf("published %v, want payment.completed", f.pub.routingKeys())
	}
}

func TestRunSagaRetryBudgetExhausts(t *testing.T) {
	f, p := newSagaFixture(t, payment.MethodCash)
	f.provider.chargeErr = errors.New("provider unavailable")

	var backoffs []time.Duration
	for attempt := 1; attempt <= 4; attempt++ {
		if err := f.svc.runSaga(context.Background(), p); err == nil {
			t.Fatalf("attempt %d: want failure", attempt)
		}
		if p.NextRetryAt != nil {
			backoffs = append(backoffs, time.Until(*p.NextRetryAt))
		}
	}

	// MaxRetries=3: attempts 1..3 schedule, attempt 4 gives up
	if p.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", p.RetryCount)
	}
	if p.NextRetryAt != nil {
		t.Error("exhausted budget must leave NextRetryAt nil")
	}
	if len(backoffs) != 3 {
		t.Fatalf("scheduled %d retries, want 3", len(backoffs))
	}
	// 30s, 60s, 120s
	for i, want := range []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second} {
		if backoffs[i] < want-5*time.Second || backoffs[i] > want+5*time.Second {
			t.Errorf("backoff %d = %v, want about %v", i+1, backoffs[i], want)
		}
	}
}
