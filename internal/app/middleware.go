package app

import (
	"github.com/openmesh-labs/identityhub/internal/middleware"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("wiring middleware")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}
