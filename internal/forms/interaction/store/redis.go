package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tripsecretary/internal/forms/interaction"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
)

// Redis key layout: one JSON document per (user, form) under a namespaced key,
// plus a per-user set of form IDs so DeleteAllForUser needs no SCAN.
const (
	interactionKeyPrefix = "interaction:"
	userFormsKeyPrefix   = "interaction-forms:"
)

// Redis persists interaction state in Redis. This is the production backend:
// interaction state must survive app restarts or every saved field would be
// downgraded to "untouched".
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func interactionKey(userID id.UserID, formID string) string {
	return interactionKeyPrefix + userID.String() + ":" + formID
}

func userFormsKey(userID id.UserID) string {
	return userFormsKeyPrefix + userID.String()
}

func (s *Redis) Load(ctx context.Context, userID id.UserID, formID string) (interaction.FormState, error) {
	raw, err := s.client.Get(ctx, interactionKey(userID, formID)).Result()
	if errors.Is(err, redis.Nil) {
		return interaction.FormState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load interaction state: %w", err)
	}

	var state interaction.FormState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode interaction state for %s: %w: %w", formID, sentinel.ErrCorrupted, err)
	}
	if state == nil {
		state = interaction.FormState{}
	}
	return state, nil
}

func (s *Redis) Save(ctx context.Context, userID id.UserID, formID string, state interaction.FormState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode interaction state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, interactionKey(userID, formID), payload, 0)
	pipe.SAdd(ctx, userFormsKey(userID), formID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save interaction state: %w", err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, userID id.UserID, formID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, interactionKey(userID, formID))
	pipe.SRem(ctx, userFormsKey(userID), formID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete interaction state: %w", err)
	}
	return nil
}

func (s *Redis) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	formIDs, err := s.client.SMembers(ctx, userFormsKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list interaction forms: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, formID := range formIDs {
		pipe.Del(ctx, interactionKey(userID, formID))
	}
	pipe.Del(ctx, userFormsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete interaction state for user: %w", err)
	}
	return nil
}
