package service

import (
	"ridebook/internal/domain/payment"
	"ridebook/internal/general/config"
	"ridebook/internal/general/logger"
	"ridebook/internal/general/rabbitmq"
	"ridebook/internal/ports"
)

// paymentService runs the payment saga and exposes the payment read side.
// It shares the rides schema with the ride service, so the saga can update
// the ride's payment sub-state in the same database.
type paymentService struct {
	logger    *logger.Logger
	cfg       *config.Config
	uow       ports.UnitOfWork
	payRepo   ports.PaymentRepository
	rideRepo  ports.RideRepository
	wallet    ports.WalletStore
	pub       ports.EventPublisher
	rabbitmq  *rabbitmq.Client
	providers map[payment.Method]Provider
}

// NewPaymentService creates a new instance of the PaymentService with the provided dependencies.
func NewPaymentService(
	logger *logger.Logger,
	cfg *config.Config,
	uow ports.UnitOfWork,
	payRepo ports.PaymentRepository,
	rideRepo ports.RideRepository,
	wallet ports.WalletStore,
	pub ports.EventPublisher,
	rabbitmq *rabbitmq.Client,
) ports.PaymentService {
	return &paymentService{
		logger:    logger,
		cfg:       cfg,
		uow:       uow,
		payRepo:   payRepo,
		rideRepo:  rideRepo,
		wallet:    wallet,
		pub:       pub,
		rabbitmq:  rabbitmq,
		providers: defaultProviders(cfg, wallet),
	}
}

// refundRules lifts the configured refund policy into the domain type.
func (service *paymentService) refundRules() payment.RefundRules {
	return payment.RefundRules{
		AllowRefund:       service.cfg.Payments.AllowRefund,
		RefundWindowHours: service.cfg.Payments.RefundWindowHours,
		MaxRefundAmount:   service.cfg.Payments.MaxRefundAmount,
	}
}
