package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB defines the database operations used by core services.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Services struct {
	Auth      *AuthService
	Endpoint  *EndpointService
	Blacklist *BlacklistService
	Admission *AdmissionService
	Broker    *ApprovalBroker
}

func NewServices(db DB, broker *ApprovalBroker, jwtSecret, jwtIssuer string) *Services {
	return &Services{
		Auth:      NewAuthService(db, jwtSecret, jwtIssuer),
		Endpoint:  NewEndpointService(db, broker),
		Blacklist: NewBlacklistService(db),
		Admission: NewAdmissionService(db, broker),
		Broker:    broker,
	}
}
