package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openmesh-labs/identityhub/internal/pkg/logger"
	"github.com/openmesh-labs/identityhub/internal/utils"
)

// SearchSyncService tells the search indexer to refresh or drop entity
// documents after a merge or unmerge. When no indexer endpoint is
// configured every call is a no-op, so the engine runs standalone.
type SearchSyncService interface {
	TriggerSync(ctx context.Context, entityIDs ...uuid.UUID) error
	TriggerRemove(ctx context.Context, entityIDs ...uuid.UUID) error
}

type searchSyncService struct {
	endpoint string
	client   *http.Client
	log      *logger.Logger
}

func NewSearchSyncService(baseLog *logger.Logger) SearchSyncService {
	log := baseLog.With("service", "SearchSyncService")
	endpoint := utils.GetEnv("SEARCH_SYNC_URL", "", log)
	if endpoint == "" {
		log.Info("search sync disabled, SEARCH_SYNC_URL not set")
	}
	return &searchSyncService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

func (s *searchSyncService) TriggerSync(ctx context.Context, entityIDs ...uuid.UUID) error {
	return s.post(ctx, "/sync", entityIDs)
}

func (s *searchSyncService) TriggerRemove(ctx context.Context, entityIDs ...uuid.UUID) error {
	return s.post(ctx, "/remove", entityIDs)
}

func (s *searchSyncService) post(ctx context.Context, path string, entityIDs []uuid.UUID) error {
	if s.endpoint == "" || len(entityIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{"entity_ids": entityIDs})
	if err != nil {
		return fmt.Errorf("marshal search sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build search sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("search sync %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("search sync %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
