package externalsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/transcodarr/internal/candidateprocessor"
	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
	"github.com/jmylchreest/transcodarr/pkg/httpclient"
)

// candidateProcessor is the subset of *candidateprocessor.Processor this
// package depends on, narrowed so tests can supply a fake. External Sync
// never inserts queue items directly — every candidate it discovers or is
// pushed flows through the same decision pipeline the Scan Pipeline and
// Folder Watcher use.
type candidateProcessor interface {
	Process(ctx context.Context, path string, profile *models.Profile, rootID *models.ULID) (*models.QueueItem, candidateprocessor.SkipReason, error)
}

// Service tests, pulls from, and receives webhook pushes from external
// catalog/scene-library connections.
type Service struct {
	connRepo    repository.ExternalConnectionRepository
	profileRepo repository.ProfileRepository
	processor   candidateProcessor
	cipher      *keyCipher
	httpTimeout time.Duration
	logger      *slog.Logger
}

// New creates a Service. secret is the process encryption secret (read
// from config/environment, never the database) used to derive the
// API-key AEAD key; an empty secret makes New fail with
// ErrEncryptionKeyNotConfigured.
func New(connRepo repository.ExternalConnectionRepository, profileRepo repository.ProfileRepository, processor candidateProcessor, secret string, httpTimeout time.Duration, logger *slog.Logger) (*Service, error) {
	cipher, err := newKeyCipher(secret)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}
	return &Service{
		connRepo:    connRepo,
		profileRepo: profileRepo,
		processor:   processor,
		cipher:      cipher,
		httpTimeout: httpTimeout,
		logger:      logger,
	}, nil
}

// SetAPIKey encrypts apiKey and stores both the ciphertext and its last-4
// preview on conn, ready for Create/Update.
func (s *Service) SetAPIKey(conn *models.ExternalConnection, apiKey string) error {
	ciphertext, err := s.cipher.encrypt(apiKey)
	if err != nil {
		return err
	}
	conn.EncryptedAPIKey = ciphertext
	conn.APIKeyLast4 = last4(apiKey)
	return nil
}

// decryptAPIKey recovers the cleartext API key transiently for one HTTP
// call; the result is never logged or persisted.
func (s *Service) decryptAPIKey(conn *models.ExternalConnection) (string, error) {
	if len(conn.EncryptedAPIKey) == 0 {
		return "", nil
	}
	return s.cipher.decrypt(conn.EncryptedAPIKey)
}

func (s *Service) clientFor(conn *models.ExternalConnection) (*apiClient, string, error) {
	apiKey, err := s.decryptAPIKey(conn)
	if err != nil {
		return nil, "", fmt.Errorf("decrypting api key for connection %s: %w", conn.Name, err)
	}
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = s.httpTimeout
	cfg.Logger = s.logger
	return newClient(conn.BaseURL, apiKey, cfg), apiKey, nil
}

// Test checks that conn is reachable and its API key is valid, dispatching
// to the GraphQL version query for scene libraries and the system-status
// endpoint for catalog connections, grounded on the original
// test_connection/_test_stash implementation.
func (s *Service) Test(ctx context.Context, conn *models.ExternalConnection) (TestResult, error) {
	client, _, err := s.clientFor(conn)
	if err != nil {
		return TestResult{}, err
	}

	var result TestResult
	switch conn.Kind {
	case models.ConnectionKindSceneLibrary:
		result, err = testStash(ctx, client)
	default:
		result, err = testSystemStatus(ctx, client)
	}
	if err != nil {
		s.logger.Warn("external connection test failed", "connection", conn.Name, "kind", conn.Kind, "error", err)
		result = TestResult{OK: false, Error: err.Error()}
	}

	now := time.Now()
	if updErr := s.connRepo.UpdateLastTested(ctx, conn.ID, now); updErr != nil {
		s.logger.Warn("failed to record connection test timestamp", "connection", conn.Name, "error", updErr)
	}

	return result, nil
}

// Pull fetches every candidate conn's library currently reports and funnels
// each one through the candidate processor against profile. It never
// inserts queue items itself. Returns the number of candidates processed.
func (s *Service) Pull(ctx context.Context, conn *models.ExternalConnection, profile *models.Profile) (int, error) {
	client, _, err := s.clientFor(conn)
	if err != nil {
		return 0, err
	}

	var candidates []Candidate
	switch conn.Kind {
	case models.ConnectionKindCatalogMovie:
		candidates, err = fetchRadarrLibrary(ctx, client)
	case models.ConnectionKindCatalogSeries:
		candidates, err = fetchSonarrLibrary(ctx, client)
	case models.ConnectionKindSceneLibrary:
		candidates, err = fetchStashLibrary(ctx, client)
	default:
		return 0, fmt.Errorf("unsupported connection kind %q", conn.Kind)
	}
	if err != nil {
		return 0, fmt.Errorf("pulling library from %s: %w", conn.Name, err)
	}

	processed := s.processCandidates(ctx, conn, candidates, profile)

	now := time.Now()
	if err := s.connRepo.UpdateLastSynced(ctx, conn.ID, now); err != nil {
		s.logger.Warn("failed to record connection sync timestamp", "connection", conn.Name, "error", err)
	}

	return processed, nil
}

func (s *Service) processCandidates(ctx context.Context, conn *models.ExternalConnection, candidates []Candidate, profile *models.Profile) int {
	processed := 0
	for _, c := range candidates {
		if c.FilePath == "" {
			continue
		}
		_, reason, err := s.processor.Process(ctx, c.FilePath, profile, nil)
		if err != nil {
			s.logger.Warn("external sync candidate processing failed", "connection", conn.Name, "path", c.FilePath, "error", err)
			continue
		}
		processed++
		if reason != candidateprocessor.SkipNone {
			s.logger.Debug("external sync candidate skipped", "connection", conn.Name, "path", c.FilePath, "reason", reason)
		}
	}
	return processed
}

// HandlePush handles one /webhooks/{kind} delivery. Only Download/Upgrade
// events are actionable; every other event type is acknowledged as
// ignored without error, matching §6's "others return 200 ignored"
// contract.
func (s *Service) HandlePush(ctx context.Context, conn *models.ExternalConnection, profile *models.Profile, payload WebhookPayload) (PushOutcome, error) {
	switch payload.EventType {
	case PushEventDownload, PushEventUpgrade:
	default:
		return PushIgnored, nil
	}

	path := payload.FilePath()
	if path == "" {
		return PushIgnored, nil
	}

	_, _, err := s.processor.Process(ctx, path, profile, nil)
	if err != nil {
		return PushIgnored, fmt.Errorf("processing webhook candidate %s: %w", path, err)
	}

	return PushQueued, nil
}
