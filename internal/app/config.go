package app

import (
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/utils"
)

type Config struct {
	Port         string
	JWTSecretKey string
	AuthRequired bool
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:         utils.GetEnv("PORT", "8080", log),
		JWTSecretKey: utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AuthRequired: utils.GetEnv("AUTH_REQUIRED", "true", log) == "true",
	}
}
