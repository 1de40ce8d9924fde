// Package memory provides in-memory record stores for tests and local
// development. Copies cross the boundary in both directions so callers can
// never mutate stored state through a returned pointer.
package memory

import (
	"context"
	"sync"

	"tripsecretary/internal/records/models"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
)

// PassportStore is a mutex-guarded map of passports.
type PassportStore struct {
	mu        sync.RWMutex
	passports map[id.PassportID]*models.Passport
}

func NewPassportStore() *PassportStore {
	return &PassportStore{passports: make(map[id.PassportID]*models.Passport)}
}

func (s *PassportStore) Save(_ context.Context, p *models.Passport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.passports[p.ID] = &cp
	return nil
}

func (s *PassportStore) FindByID(_ context.Context, passportID id.PassportID) (*models.Passport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.passports[passportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PassportStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Passport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Passport
	for _, p := range s.passports {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *PassportStore) FindPrimary(_ context.Context, userID id.UserID) (*models.Passport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.passports {
		if p.UserID == userID && p.IsPrimary {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// SetPrimary demotes any current primary and promotes the target under one
// lock acquisition, mirroring the transactional postgres implementation.
func (s *PassportStore) SetPrimary(_ context.Context, userID id.UserID, passportID id.PassportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.passports[passportID]
	if !ok || target.UserID != userID {
		return sentinel.ErrNotFound
	}
	for _, p := range s.passports {
		if p.UserID == userID {
			p.IsPrimary = false
		}
	}
	target.IsPrimary = true
	return nil
}

func (s *PassportStore) Delete(_ context.Context, passportID id.PassportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.passports[passportID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.passports, passportID)
	return nil
}

func (s *PassportStore) DeleteAllForUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pid, p := range s.passports {
		if p.UserID == userID {
			delete(s.passports, pid)
		}
	}
	return nil
}

// PersonalInfoStore keeps the per-user singleton keyed by user.
type PersonalInfoStore struct {
	mu      sync.RWMutex
	records map[id.UserID]*models.PersonalInfo
}

func NewPersonalInfoStore() *PersonalInfoStore {
	return &PersonalInfoStore{records: make(map[id.UserID]*models.PersonalInfo)}
}

func (s *PersonalInfoStore) Save(_ context.Context, p *models.PersonalInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.records[p.UserID] = &cp
	return nil
}

func (s *PersonalInfoStore) FindByUser(_ context.Context, userID id.UserID) (*models.PersonalInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *PersonalInfoStore) DeleteAllForUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// FundItemStore is a mutex-guarded map of fund items.
type FundItemStore struct {
	mu    sync.RWMutex
	items map[id.FundItemID]*models.FundItem
}

func NewFundItemStore() *FundItemStore {
	return &FundItemStore{items: make(map[id.FundItemID]*models.FundItem)}
}

func (s *FundItemStore) Save(_ context.Context, f *models.FundItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.items[f.ID] = &cp
	return nil
}

func (s *FundItemStore) FindByID(_ context.Context, fundItemID id.FundItemID) (*models.FundItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.items[fundItemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *FundItemStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.FundItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.FundItem
	for _, f := range s.items {
		if f.UserID == userID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *FundItemStore) Delete(_ context.Context, fundItemID id.FundItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[fundItemID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.items, fundItemID)
	return nil
}

func (s *FundItemStore) DeleteAllForUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for fid, f := range s.items {
		if f.UserID == userID {
			delete(s.items, fid)
		}
	}
	return nil
}

// TravelInfoStore keys travel details by user and destination.
type TravelInfoStore struct {
	mu      sync.RWMutex
	records map[id.TravelInfoID]*models.TravelInfo
}

func NewTravelInfoStore() *TravelInfoStore {
	return &TravelInfoStore{records: make(map[id.TravelInfoID]*models.TravelInfo)}
}

func (s *TravelInfoStore) Save(_ context.Context, t *models.TravelInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.records[t.ID] = &cp
	return nil
}

func (s *TravelInfoStore) FindByUserAndDestination(_ context.Context, userID id.UserID, destinationID string) (*models.TravelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.records {
		if t.UserID == userID && t.DestinationID == destinationID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *TravelInfoStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.TravelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TravelInfo
	for _, t := range s.records {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *TravelInfoStore) DeleteAllForUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tid, t := range s.records {
		if t.UserID == userID {
			delete(s.records, tid)
		}
	}
	return nil
}

// EntryInfoStore is a mutex-guarded map of entry aggregates. The nested
// Documents and DisplayStatus maps are copied element-wise.
type EntryInfoStore struct {
	mu      sync.RWMutex
	entries map[id.EntryInfoID]*models.EntryInfo
}

func NewEntryInfoStore() *EntryInfoStore {
	return &EntryInfoStore{entries: make(map[id.EntryInfoID]*models.EntryInfo)}
}

func copyEntryInfo(e *models.EntryInfo) *models.EntryInfo {
	cp := *e
	cp.Documents = make(map[string]models.DocumentState, len(e.Documents))
	for k, v := range e.Documents {
		cp.Documents[k] = v
	}
	cp.DisplayStatus = make(map[string]models.SectionStatus, len(e.DisplayStatus))
	for k, v := range e.DisplayStatus {
		cp.DisplayStatus[k] = v
	}
	return &cp
}

func (s *EntryInfoStore) Save(_ context.Context, e *models.EntryInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = copyEntryInfo(e)
	return nil
}

func (s *EntryInfoStore) FindByID(_ context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryInfoID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyEntryInfo(e), nil
}

func (s *EntryInfoStore) FindByUserAndDestination(_ context.Context, userID id.UserID, destinationID string) (*models.EntryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.UserID == userID && e.DestinationID == destinationID {
			return copyEntryInfo(e), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *EntryInfoStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.EntryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EntryInfo
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, copyEntryInfo(e))
		}
	}
	return out, nil
}

func (s *EntryInfoStore) DeleteAllForUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for eid, e := range s.entries {
		if e.UserID == userID {
			delete(s.entries, eid)
		}
	}
	return nil
}
