// Package memory provides the in-memory card store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"tripsecretary/internal/cards/models"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
)

type CardStore struct {
	mu    sync.RWMutex
	cards map[id.CardID]*models.DigitalArrivalCard
}

func NewCardStore() *CardStore {
	return &CardStore{cards: make(map[id.CardID]*models.DigitalArrivalCard)}
}

func copyCard(c *models.DigitalArrivalCard) *models.DigitalArrivalCard {
	cp := *c
	if c.SupersededAt != nil {
		t := *c.SupersededAt
		cp.SupersededAt = &t
	}
	return &cp
}

func (s *CardStore) Save(_ context.Context, card *models.DigitalArrivalCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.ID] = copyCard(card)
	return nil
}

func (s *CardStore) FindByID(_ context.Context, cardID id.CardID) (*models.DigitalArrivalCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[cardID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCard(c), nil
}

func (s *CardStore) GetLatestSuccessful(_ context.Context, entryInfoID id.EntryInfoID, cardType id.CardType) (*models.DigitalArrivalCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.DigitalArrivalCard
	for _, c := range s.cards {
		if c.EntryInfoID != entryInfoID || c.CardType != cardType || !c.IsAuthoritative() {
			continue
		}
		if latest == nil || c.SubmittedAt.After(latest.SubmittedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return copyCard(latest), nil
}

func (s *CardStore) ListByEntryInfo(_ context.Context, entryInfoID id.EntryInfoID) ([]*models.DigitalArrivalCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DigitalArrivalCard
	for _, c := range s.cards {
		if c.EntryInfoID == entryInfoID {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *CardStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.DigitalArrivalCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DigitalArrivalCard
	for _, c := range s.cards {
		if c.UserID == userID {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *CardStore) DeleteAllForUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, c := range s.cards {
		if c.UserID == userID {
			delete(s.cards, cid)
		}
	}
	return nil
}
