package subscriptions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/plans"
)

type memStore struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]*models.Subscription
	conflicts int
	updates   int
	err       error
}

func newMemStore(subs ...*models.Subscription) *memStore {
	m := &memStore{subs: map[uuid.UUID]*models.Subscription{}}
	for _, s := range subs {
		if s.Version == 0 {
			s.Version = 1
		}
		m.subs[s.ChurchID] = s
	}
	return m
}

func (m *memStore) GetByChurch(_ context.Context, churchID uuid.UUID) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.subs[churchID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, s *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.Version = 1
	cp := *s
	m.subs[s.ChurchID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, s *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		m.subs[s.ChurchID].Version++
		return ErrVersionConflict
	}
	stored, ok := m.subs[s.ChurchID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != s.Version {
		return ErrVersionConflict
	}
	s.Version++
	cp := *s
	m.subs[s.ChurchID] = &cp
	m.updates++
	return nil
}

func (m *memStore) ListDueDowngrades(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Subscription
	for _, s := range m.subs {
		if s.PendingPlanID != nil && s.NextBillingDate != nil && !s.NextBillingDate.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPlans struct {
	byID map[uuid.UUID]*models.Plan
}

func intPtr(n int) *int { return &n }

func newMemPlans() (*memPlans, map[string]*models.Plan) {
	named := map[string]*models.Plan{
		models.PlanFreeLite: {ID: uuid.New(), Name: models.PlanFreeLite, MemberLimit: intPtr(50), IsActive: true},
		models.PlanBasic:    {ID: uuid.New(), Name: models.PlanBasic, MemberLimit: intPtr(100), IsActive: true},
		models.PlanStandard: {ID: uuid.New(), Name: models.PlanStandard, MemberLimit: intPtr(500), IsActive: true},
		models.PlanPremium:  {ID: uuid.New(), Name: models.PlanPremium, IsActive: true},
	}
	m := &memPlans{byID: map[uuid.UUID]*models.Plan{}}
	for _, p := range named {
		m.byID[p.ID] = p
	}
	return m, named
}

func (m *memPlans) GetByID(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, plans.ErrNotFound
	}
	return p, nil
}

func (m *memPlans) GetActiveByName(_ context.Context, name string) (*models.Plan, error) {
	for _, p := range m.byID {
		if p.Name == name && p.IsActive {
			return p, nil
		}
	}
	return nil, plans.ErrNotFound
}

func timePtr(t time.Time) *time.Time { return &t }
