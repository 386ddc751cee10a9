package http

import (
	"github.com/nats-io/nats.go"
	"github.com/ortziar/ankora/internal/adapters/postgres"
	"github.com/ortziar/ankora/internal/adapters/valkey"
	"github.com/ortziar/ankora/internal/core/ports"
	"github.com/ortziar/ankora/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions    *usecases.SessionManager
	Catalog     *usecases.CatalogService
	Completions *usecases.CompletionService
	Publisher   ports.EventPublisher
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache
}
