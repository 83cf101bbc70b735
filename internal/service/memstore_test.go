package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

type edge struct{ grantor, grantee string }

// memStore is an in-memory implementation of every repository interface.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	users       map[string]*models.User
	meta        map[string]map[string]string
	permissions map[edge]int64
	relations   map[int64]models.Relation
	favorites   map[int64]models.Favorite
	reminders   map[int64]models.Reminder
	activities  map[int64]models.Activity
	// failures holds one-shot errors by operation name.
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]*models.User{},
		meta:        map[string]map[string]string{},
		permissions: map[edge]int64{},
		relations:   map[int64]models.Relation{},
		favorites:   map[int64]models.Favorite{},
		reminders:   map[int64]models.Reminder{},
		activities:  map[int64]models.Activity{},
		failures:    map[string]error{},
	}
}

// failNext makes the next call of op fail with err.
func (m *memStore) failNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *memStore) takeFailure(op string) error {
	err := m.failures[op]
	delete(m.failures, op)
	return err
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) UserExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *memStore) CreateUser(_ context.Context, id string, pwdHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; ok {
		return common.ErrAlreadyExists
	}
	m.users[id] = &models.User{ID: id, PasswordHash: pwdHash, CreatedAt: time.Now()}
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdatePassword(_ context.Context, id string, pwdHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = pwdHash
	return nil
}

func (m *memStore) EraseUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return common.ErrNotFound
	}
	for k, r := range m.relations {
		if r.FromUserID == id || r.ToUserID == id {
			delete(m.relations, k)
		}
	}
	for k, f := range m.favorites {
		if f.UserID == id {
			delete(m.favorites, k)
		}
	}
	for k, r := range m.reminders {
		if r.UserID == id {
			delete(m.reminders, k)
		}
	}
	for k, a := range m.activities {
		if a.UserID == id {
			delete(m.activities, k)
		}
	}
	for e := range m.permissions {
		if e.grantor == id || e.grantee == id {
			delete(m.permissions, e)
		}
	}
	delete(m.meta, id)
	delete(m.users, id)
	return nil
}

func (m *memStore) GetMeta(_ context.Context, userID, key string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.meta[userID][key]; ok {
		return &v, nil
	}
	return nil, nil
}

func (m *memStore) GetMetaKeys(_ context.Context, userID string, keys []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := m.meta[userID][k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStore) SetMeta(_ context.Context, userID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return common.ErrValidation
	}
	if m.meta[userID] == nil {
		m.meta[userID] = map[string]string{}
	}
	m.meta[userID][key] = value
	return nil
}

func (m *memStore) AddPermission(_ context.Context, grantor, grantee string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := edge{grantor, grantee}
	if _, ok := m.permissions[e]; ok {
		return false, nil
	}
	m.permissions[e] = m.id()
	return true, nil
}

func (m *memStore) RemovePermission(_ context.Context, grantor, grantee string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := edge{grantor, grantee}
	if _, ok := m.permissions[e]; !ok {
		return common.ErrNotFound
	}
	delete(m.permissions, e)
	return nil
}

func (m *memStore) HasPermission(_ context.Context, grantor, grantee string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.permissions[edge{grantor, grantee}]
	return ok, nil
}

func (m *memStore) Grantees(_ context.Context, grantor string) ([]string, error) {
	return m.edges(func(e edge) (string, bool) { return e.grantee, e.grantor == grantor }), nil
}

func (m *memStore) Grantors(_ context.Context, grantee string) ([]string, error) {
	return m.edges(func(e edge) (string, bool) { return e.grantor, e.grantee == grantee }), nil
}

func (m *memStore) edges(pick func(edge) (string, bool)) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	type seq struct {
		id string
		n  int64
	}
	var found []seq
	for e, n := range m.permissions {
		if id, ok := pick(e); ok {
			found = append(found, seq{id, n})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	ids := make([]string, 0, len(found))
	for _, s := range found {
		ids = append(ids, s.id)
	}
	return ids
}

func (m *memStore) ListRelations(_ context.Context, fromUserID string) ([]models.RelationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []models.RelationView{}
	for _, r := range m.relations {
		if r.FromUserID != fromUserID {
			continue
		}
		v := models.RelationView{ID: r.ID, ToUserID: r.ToUserID, Relation: r.Relation}
		if name, ok := m.meta[r.ToUserID][models.MetaName]; ok {
			v.Name = &name
		}
		if avatar, ok := m.meta[r.ToUserID][models.MetaAvatar]; ok {
			v.Avatar = &avatar
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

func (m *memStore) GetRelation(_ context.Context, id int64) (*models.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relations[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) CreateRelation(_ context.Context, rel models.Relation, grant *models.Grant) (*models.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("CreateRelation"); err != nil {
		return nil, err
	}
	if grant != nil {
		if err := m.takeFailure("CreateRelation.grant"); err != nil {
			return nil, err
		}
		if _, ok := m.permissions[edge{grant.Grantor, grant.Grantee}]; !ok {
			m.permissions[edge{grant.Grantor, grant.Grantee}] = m.id()
		}
	}
	rel.ID = m.id()
	m.relations[rel.ID] = rel
	return &rel, nil
}

func (m *memStore) UpdateRelation(_ context.Context, id int64, relation string) (*models.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relations[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	r.Relation = relation
	m.relations[id] = r
	return &r, nil
}

func (m *memStore) DeleteRelation(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.relations[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.relations, id)
	return nil
}

func (m *memStore) ListFavorites(_ context.Context, userID string) ([]models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Favorite{}
	for _, f := range m.favorites {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) GetFavorite(_ context.Context, id int64) (*models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.favorites[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &f, nil
}

func (m *memStore) CreateFavorite(_ context.Context, f models.Favorite) (*models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = m.id()
	m.favorites[f.ID] = f
	return &f, nil
}

func (m *memStore) UpdateFavorite(_ context.Context, f models.Favorite) (*models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.favorites[f.ID]; !ok {
		return nil, common.ErrNotFound
	}
	m.favorites[f.ID] = f
	return &f, nil
}

func (m *memStore) DeleteFavorite(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.favorites[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.favorites, id)
	return nil
}

func (m *memStore) ListReminders(_ context.Context, userID string) ([]models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Reminder{}
	for _, r := range m.reminders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetReminder(_ context.Context, id int64) (*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) CreateReminder(_ context.Context, r models.Reminder) (*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	m.reminders[r.ID] = r
	return &r, nil
}

func (m *memStore) UpdateReminder(_ context.Context, r models.Reminder) (*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[r.ID]; !ok {
		return nil, common.ErrNotFound
	}
	m.reminders[r.ID] = r
	return &r, nil
}

func (m *memStore) DeleteReminder(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.reminders, id)
	return nil
}

func (m *memStore) ListActivities(_ context.Context, userID string) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Activity{}
	for _, a := range m.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetActivity(_ context.Context, id int64) (*models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) CreateActivity(_ context.Context, a models.Activity) (*models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.activities[a.ID] = a
	return &a, nil
}

func (m *memStore) UpdateActivity(_ context.Context, a models.Activity) (*models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activities[a.ID]; !ok {
		return nil, common.ErrNotFound
	}
	m.activities[a.ID] = a
	return &a, nil
}

func (m *memStore) DeleteActivity(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activities[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.activities, id)
	return nil
}

// counts returns the number of rows referencing id per resource table.
func (m *memStore) counts(id string) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := map[string]int{}
	for _, r := range m.relations {
		if r.FromUserID == id || r.ToUserID == id {
			c["relations"]++
		}
	}
	for _, f := range m.favorites {
		if f.UserID == id {
			c["favorites"]++
		}
	}
	for _, r := range m.reminders {
		if r.UserID == id {
			c["reminders"]++
		}
	}
	for _, a := range m.activities {
		if a.UserID == id {
			c["activities"]++
		}
	}
	return c
}
