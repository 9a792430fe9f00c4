package app

import (
	"github.com/openmesh-labs/identityhub/internal/handlers"
	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
)

type Handlers struct {
	Merge *handlers.MergeHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("wiring handlers")
	return Handlers{
		Merge: handlers.NewMergeHandler(serviceset.Merge, serviceset.Unmerge, serviceset.NoMerge),
	}
}
