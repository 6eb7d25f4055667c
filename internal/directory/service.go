package directory

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hireloop/backend/internal/models"
)

// ErrAgentNotFound is returned for existence lookups on unknown agents.
var ErrAgentNotFound = errAgentNotFound

// ErrInvalidAgent is returned for malformed registration input.
var ErrInvalidAgent = errors.New("invalid agent registration")

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// KeyWriter persists the minted API key in the registration transaction.
type KeyWriter interface {
	CreateTx(ctx context.Context, tx pgx.Tx, k *models.APIKey) error
}

type Service interface {
	// RegisterAgent creates the agent and mints its API key in one
	// transaction. The raw key is returned exactly once; only its
	// SHA-256 hash is stored.
	RegisterAgent(ctx context.Context, accountID uuid.UUID, displayName, webhookURL string) (*models.Agent, string, error)
	// GetAgent is the existence lookup the negotiation flow depends on.
	GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error)
}

type service struct {
	repo *Repository
	keys KeyWriter
	pool TxBeginner
}

func NewService(repo *Repository, keys KeyWriter, pool TxBeginner) Service {
	return &service{repo: repo, keys: keys, pool: pool}
}

var _ Service = (*service)(nil)

func (s *service) RegisterAgent(ctx context.Context, accountID uuid.UUID, displayName, webhookURL string) (*models.Agent, string, error) {
	if displayName == "" {
		return nil, "", ErrInvalidAgent
	}

	rawKey, keyHash, keyPrefix, err := mintKey()
	if err != nil {
		return nil, "", fmt.Errorf("directory: mint api key: %w", err)
	}

	agent := &models.Agent{
		AccountID:   accountID,
		DisplayName: displayName,
		WebhookURL:  webhookURL,
		Status:      models.AgentStatusActive,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.CreateTx(ctx, tx, agent); err != nil {
		return nil, "", err
	}
	key := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		AgentID:   agent.ID,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		IsActive:  true,
	}
	if err := s.keys.CreateTx(ctx, tx, key); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return agent, rawKey, nil
}

func (s *service) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return s.repo.GetByID(ctx, id)
}

func mintKey() (rawKey, keyHash, keyPrefix string, err error) {
	rawBytes := make([]byte, 32)
	if _, err = rand.Read(rawBytes); err != nil {
		return "", "", "", err
	}
	rawKey = "hl_" + hex.EncodeToString(rawBytes)
	hash := sha256.Sum256([]byte(rawKey))
	return rawKey, hex.EncodeToString(hash[:]), rawKey[:12], nil
}
