package service

import (
	"ridebook/internal/general/config"
	"ridebook/internal/general/logger"
	"ridebook/internal/general/rabbitmq"
	"ridebook/internal/ports"
)

// rideService encapsulates the ride lifecycle logic and dependencies. The
// rides table is the single authority on lifecycle state; the payment service
// only observes it through events and the shared payment_status column.
type rideService struct {
	logger   *logger.Logger
	cfg      *config.Config
	uow      ports.UnitOfWork
	rideRepo ports.RideRepository
	cache    ports.RideCache
	pub      ports.EventPublisher
	rabbitmq *rabbitmq.Client
}

// NewRideService creates a new instance of the RideService with the provided dependencies.
func NewRideService(
	logger *logger.Logger,
	cfg *config.Config,
	uow ports.UnitOfWork,
	rideRepo ports.RideRepository,
	cache ports.RideCache,
	pub ports.EventPublisher,
	rabbitmq *rabbitmq.Client,
) ports.RideService {
	return &rideService{
		logger:   logger,
		cfg:      cfg,
		uow:      uow,
		rideRepo: rideRepo,
		cache:    cache,
		pub:      pub,
		rabbitmq: rabbitmq,
	}
}
