package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process Store. It backs single-node deployments without a
// database and the household tests.
type Memory struct {
	mu         sync.Mutex
	users      map[string]UserDoc
	households map[string]HouseholdDoc
	watchers   map[string]map[chan struct{}]struct{}
	failures   map[string]error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[string]UserDoc),
		households: make(map[string]HouseholdDoc),
		watchers:   make(map[string]map[chan struct{}]struct{}),
		failures:   make(map[string]error),
	}
}

// Fail makes every later call to the named method return err. A nil err
// clears the failure.
func (m *Memory) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

// must be called with mu held
func (m *Memory) failure(method string) error {
	return m.failures[method]
}

func cloneUser(u UserDoc) *UserDoc {
	if u.HouseholdID != nil {
		id := *u.HouseholdID
		u.HouseholdID = &id
	}
	return &u
}

func (m *Memory) GetUser(_ context.Context, uid string) (*UserDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetUser"); err != nil {
		return nil, err
	}

	u, ok := m.users[uid]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (m *Memory) CreateUser(_ context.Context, user UserDoc) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateUser"); err != nil {
		return false, err
	}

	if _, ok := m.users[user.UID]; ok {
		return false, nil
	}
	m.users[user.UID] = *cloneUser(user)
	return true, nil
}

func (m *Memory) SetUserHousehold(_ context.Context, uid string, householdID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SetUserHousehold"); err != nil {
		return err
	}

	u, ok := m.users[uid]
	if !ok {
		return fmt.Errorf("set household of user %s: %w", uid, ErrNotFound)
	}
	u.HouseholdID = householdID
	m.users[uid] = *cloneUser(u)
	return nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*UserDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("FindUserByEmail"); err != nil {
		return nil, err
	}

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (m *Memory) GetUsers(_ context.Context, uids []string) ([]UserDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetUsers"); err != nil {
		return nil, err
	}

	users := make([]UserDoc, 0, len(uids))
	for _, uid := range uids {
		if u, ok := m.users[uid]; ok {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

func (m *Memory) GetHousehold(_ context.Context, id string) (*HouseholdDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetHousehold"); err != nil {
		return nil, err
	}

	h, ok := m.households[id]
	if !ok {
		return nil, nil
	}
	h.Members = cloneMembers(h.Members)
	return &h, nil
}

func (m *Memory) CreateHousehold(_ context.Context, household HouseholdDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreateHousehold"); err != nil {
		return err
	}

	if _, ok := m.households[household.ID]; ok {
		return fmt.Errorf("create household %s: already exists", household.ID)
	}
	household.Members = cloneMembers(household.Members)
	m.households[household.ID] = household
	m.notify(household.ID)
	return nil
}

func (m *Memory) RenameHousehold(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("RenameHousehold"); err != nil {
		return err
	}

	h, ok := m.households[id]
	if !ok {
		return fmt.Errorf("rename household %s: %w", id, ErrNotFound)
	}
	h.Name = name
	m.households[id] = h
	m.notify(id)
	return nil
}

func (m *Memory) UpdateMembers(_ context.Context, id string, fn MembersFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UpdateMembers"); err != nil {
		return err
	}

	h, ok := m.households[id]
	if !ok {
		return fmt.Errorf("update members of %s: %w", id, ErrNotFound)
	}
	next, changed := fn(cloneMembers(h.Members))
	if !changed {
		return nil
	}
	h.Members = cloneMembers(next)
	m.households[id] = h
	m.notify(id)
	return nil
}

func (m *Memory) WatchHousehold(ctx context.Context, id string) (<-chan struct{}, error) {
	m.mu.Lock()
	if err := m.failure("WatchHousehold"); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	set, ok := m.watchers[id]
	if !ok {
		set = make(map[chan struct{}]struct{})
		m.watchers[id] = set
	}
	set[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers[id], ch)
		if len(m.watchers[id]) == 0 {
			delete(m.watchers, id)
		}
		close(ch)
	}()
	return ch, nil
}

// WatcherCount reports the live watches on a household.
func (m *Memory) WatcherCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers[id])
}

// must be called with mu held
func (m *Memory) notify(id string) {
	for ch := range m.watchers[id] {
		signal(ch)
	}
}

// HouseholdCount reports how many household documents exist.
func (m *Memory) HouseholdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.households)
}
