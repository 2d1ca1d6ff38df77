package main

import (
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/ledger"
	reservationapp "staybook/internal/app/handlers/reservations"
	"staybook/internal/app/handlers/search"
	stayapp "staybook/internal/app/handlers/stays"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	"staybook/internal/domain/reservations"
	"staybook/internal/domain/stays"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/security"
)

// backends are the store-specific collaborators selected by configuration.
type backends struct {
	uow         uow.UoWFactory
	geo         stays.GeoIndex
	locks       policies.StayLocker
	outbox      outbox.Outbox
	idempotency middleware.IdempotencyStore
	images      policies.ImageStore
	geocoder    policies.Geocoder
	checks      map[string]obs.Check
}

type application struct {
	commands commands.Bus
	queries  queries.Bus
	handlers ginserver.Handlers
}

// replayableErrors are final outcomes an idempotent retry may see again.
var replayableErrors = middleware.ReplayableErrors{
	reservations.ErrReservationCollision,
	reservations.ErrReservationNotFound,
	reservations.ErrInvalidRange,
	stays.ErrStayNotFound,
	stays.ErrStayHasActiveReservations,
}

func buildApplication(b backends, verifier *security.TokenVerifier, metrics *obs.Metrics, clock policies.Clock, logger *slog.Logger) application {
	encoder := outbox.JSONEventEncoder{}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, reservationapp.BookStayKey, &reservationapp.BookStayHandler{
		Outbox:  b.outbox,
		Encoder: encoder,
		Clock:   clock,
		Logger:  logger,
	})
	commands.RegisterHandler(commandBus, reservationapp.CancelReservationKey, &reservationapp.CancelReservationHandler{
		UoWFactory: b.uow,
		Locker:     b.locks,
		Outbox:     b.outbox,
		Encoder:    encoder,
		Clock:      clock,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, stayapp.CreateStayKey, &stayapp.CreateStayHandler{
		UoWFactory: b.uow,
		Geo:        b.geo,
		Geocoder:   b.geocoder,
		Images:     b.images,
		Outbox:     b.outbox,
		Encoder:    encoder,
		Clock:      clock,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, stayapp.DeleteStayKey, &stayapp.DeleteStayHandler{
		UoWFactory: b.uow,
		Geo:        b.geo,
		Images:     b.images,
		Outbox:     b.outbox,
		Encoder:    encoder,
		Clock:      clock,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, ledger.RebuildLedgerKey, &ledger.RebuildLedgerHandler{
		UoWFactory: b.uow,
		Locker:     b.locks,
		Outbox:     b.outbox,
		Encoder:    encoder,
		Clock:      clock,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	var recorder search.Recorder
	var outcomes middleware.OutcomeRecorder
	if metrics != nil {
		recorder = metrics
		outcomes = metrics
	}
	queries.RegisterHandler(queryBus, search.SearchStaysKey, &search.SearchStaysHandler{
		UoWFactory: b.uow,
		Geo:        b.geo,
		Clock:      clock,
		Recorder:   recorder,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, reservationapp.ListStayReservationsKey, &reservationapp.ListStayReservationsHandler{UoWFactory: b.uow})
	queries.RegisterHandler(queryBus, reservationapp.ListGuestReservationsKey, &reservationapp.ListGuestReservationsHandler{UoWFactory: b.uow})
	queries.RegisterHandler(queryBus, stayapp.GetHostStayKey, &stayapp.GetHostStayHandler{UoWFactory: b.uow})
	queries.RegisterHandler(queryBus, stayapp.ListHostStaysKey, &stayapp.ListHostStaysHandler{UoWFactory: b.uow})
	queries.RegisterHandler(queryBus, stayapp.GetStayCalendarKey, &stayapp.GetStayCalendarHandler{UoWFactory: b.uow})

	// Outermost first: the stay lock wraps the transaction so it is held
	// through commit.
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.ObserveCommands(outcomes, logger),
		middleware.Authorization(middleware.RoleAuthorizer{}),
		middleware.Validation(middleware.SelfValidator{}),
		middleware.Idempotency(b.idempotency, nil, replayableErrors, logger),
		middleware.OutboxFlush(b.outbox, logger),
		middleware.StayLock(b.locks),
		middleware.Transaction(b.uow, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.ObserveQueries(outcomes, logger),
		middleware.QueryAuthorization(middleware.RoleAuthorizer{}),
		middleware.QueryValidation(middleware.SelfValidator{}),
	)

	handlers := ginserver.Handlers{
		Search: ginserver.SearchHandler{Queries: queryBusWithMiddleware, Logger: logger},
		Reservation: ginserver.ReservationHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		Stay: ginserver.StayHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		Admin:          ginserver.AdminHandler{Commands: commandBusWithMiddleware, Logger: logger},
		AuthMiddleware: ginserver.IdentityMiddleware{Verifier: verifier, Logger: logger}.Handle,
	}
	if metrics != nil {
		handlers.Metrics = metrics.Handler()
	}
	return application{
		commands: commandBusWithMiddleware,
		queries:  queryBusWithMiddleware,
		handlers: handlers,
	}
}
