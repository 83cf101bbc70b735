package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GuardPine/internal/auth"
	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store       *memStore
	clock       *testclock.Clock
	tokens      *auth.Issuer
	identity    *IdentityService
	permissions *PermissionService
	reminders   *ReminderService
	activities  *ActivityService
	relations   *RelationService
	favorites   *FavoriteService
}

func newFixture(t *testing.T, articles ArticleFetcher) *fixture {
	t.Helper()
	store := newMemStore()
	clk := testclock.NewClock(epoch)
	tokens := auth.NewIssuer([]byte("secret"), clk)

	identity := NewIdentityService(store, store, tokens, time.Hour)
	identity.cost = bcrypt.MinCost
	perms := NewPermissionService(store, store)

	activities := NewActivityService(store, store, perms, clk)
	favorites := NewFavoriteService(store, store, perms, articles, clk, zap.NewNop())

	return &fixture{
		store:       store,
		clock:       clk,
		tokens:      tokens,
		identity:    identity,
		permissions: perms,
		reminders:   NewReminderService(store, store, perms, clk),
		activities:  activities,
		relations:   NewRelationService(store, store, perms).WithDetails(favorites, activities),
		favorites:   favorites,
	}
}

func (f *fixture) register(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.identity.Register(context.Background(), id, id+"-pw"))
	}
}

func TestIdentity_RegisterLoginReminder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	require.NoError(t, f.identity.Register(ctx, "alice", "p1"))

	ok, err := f.identity.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := f.identity.Login(ctx, "alice", "p1")
	require.NoError(t, err)
	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.ID)

	created, err := f.reminders.Create(ctx, claims.ID, NewReminder{Content: "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "alice", created.UserID)
	require.NotNil(t, created.Creator)
	assert.Equal(t, "alice", *created.Creator)
	assert.Equal(t, epoch, created.CreationTime)

	list, err := f.reminders.List(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "buy milk", list[0].Content)
}

func TestIdentity_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice")

	err := f.identity.Register(ctx, "alice", "again")
	assert.True(t, errors.Is(err, common.ErrAlreadyExists), "got %v", err)

	err = f.identity.Register(ctx, " ", "pw")
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	_, err = f.identity.Login(ctx, "alice", "wrong")
	assert.True(t, errors.Is(err, common.ErrWrongCredential), "got %v", err)

	_, err = f.identity.Login(ctx, "nobody", "pw")
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestIdentity_ResetPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice")

	err := f.identity.ResetPassword(ctx, "alice", "bad", "new")
	assert.True(t, errors.Is(err, common.ErrWrongCredential), "got %v", err)

	require.NoError(t, f.identity.ResetPassword(ctx, "alice", "alice-pw", "new"))

	ok, err := f.identity.VerifyPassword(ctx, "alice", "new")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.identity.VerifyPassword(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentity_MetaAndProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice")

	v, err := f.identity.GetMeta(ctx, "alice", models.MetaBio)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, f.identity.SetMeta(ctx, "alice", models.MetaName, "Alice"))
	require.NoError(t, f.identity.SetMeta(ctx, "alice", models.MetaBio, "retired teacher"))

	p, err := f.identity.Profile(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Alice", *p.Name)
	assert.Equal(t, "retired teacher", *p.Bio)
	assert.Nil(t, p.Avatar)

	res, err := f.identity.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	assert.Equal(t, "Alice", *res.Name)

	_, err = f.identity.GetMeta(ctx, "ghost", models.MetaBio)
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
	err = f.identity.SetMeta(ctx, "ghost", models.MetaBio, "nobody")
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestIdentity_Location(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice")

	loc, err := f.identity.Location(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, DefaultLocation, loc)

	require.NoError(t, f.identity.SetLocation(ctx, "alice", [2]float64{121.47, 31.23}))
	loc, err = f.identity.Location(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{121.47, 31.23}, loc)

	err = f.identity.SetLocation(ctx, "alice", [2]float64{200, 0})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
}

func TestIdentity_EraseCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice", "bob")

	_, err := f.relations.Create(ctx, "alice", NewRelation{ToUserID: "bob", Relation: "son", Permission: true})
	require.NoError(t, err)
	_, err = f.reminders.Create(ctx, "alice", NewReminder{Content: "buy milk"})
	require.NoError(t, err)
	_, err = f.activities.Create(ctx, "bob", NewActivity{Name: "walk", UserID: "alice"})
	require.NoError(t, err)
	_, err = f.favorites.Create(ctx, "alice", NewFavorite{ArticleID: 7})
	require.NoError(t, err)

	require.NoError(t, f.identity.Erase(ctx, "alice"))

	ok, err := f.identity.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.store.counts("alice"))

	granted, err := f.permissions.GrantedTo(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, granted)

	err = f.identity.Erase(ctx, "alice")
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestPermissions_GrantRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice", "bob", "carol")

	perms, err := f.permissions.PermissionsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, perms)

	added, err := f.permissions.Grant(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.permissions.Grant(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, added, "grant is idempotent")

	added, err = f.permissions.Grant(ctx, "alice", "alice")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = f.permissions.Grant(ctx, "alice", "ghost")
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	perms, err = f.permissions.PermissionsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, perms)

	granted, err := f.permissions.GrantedTo(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, granted)

	require.NoError(t, f.permissions.EnsurePermitted(ctx, "bob", "alice"))
	err = f.permissions.EnsurePermitted(ctx, "alice", "bob")
	assert.True(t, errors.Is(err, common.ErrForbidden), "grant is directed, got %v", err)

	require.NoError(t, f.permissions.Revoke(ctx, "alice", "bob"))
	err = f.permissions.Revoke(ctx, "alice", "bob")
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestPermissions_NotTransitive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice", "bob", "carol")

	_, err := f.permissions.Grant(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.permissions.Grant(ctx, "bob", "carol")
	require.NoError(t, err)

	require.NoError(t, f.permissions.EnsurePermitted(ctx, "carol", "bob"))
	err = f.permissions.EnsurePermitted(ctx, "carol", "alice")
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)
}

func TestActivities_EmptySituationDefaultsToTodo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice")

	var in NewActivity
	require.NoError(t, json.Unmarshal([]byte(`{"name":"tai chi","situation":""}`), &in))

	act, err := f.activities.Create(ctx, "alice", in)
	require.NoError(t, err)
	assert.Equal(t, models.ProgressTodo, act.Situation)
}

func TestActivities_ActOnBehalf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice", "bob")

	_, err := f.activities.Create(ctx, "bob", NewActivity{Name: "walk", UserID: "alice"})
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)

	_, err = f.permissions.Grant(ctx, "alice", "bob")
	require.NoError(t, err)

	act, err := f.activities.Create(ctx, "bob", NewActivity{Name: "walk", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", act.UserID)
	assert.Equal(t, "bob", *act.Creator)
	assert.Equal(t, models.ProgressTodo, act.Situation)

	list, err := f.activities.List(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "walk", list[0].Name)

	require.NoError(t, f.permissions.Revoke(ctx, "alice", "bob"))

	done := models.ProgressDone
	_, err = f.activities.Update(ctx, "bob", ActivityPatch{ID: act.ID, Situation: &done})
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)

	err = f.activities.Delete(ctx, "bob", act.ID)
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)

	updated, err := f.activities.Update(ctx, "alice", ActivityPatch{ID: act.ID, Situation: &done})
	require.NoError(t, err)
	assert.Equal(t, models.ProgressDone, updated.Situation)
}

func TestActivities_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice")

	start := epoch.Add(time.Hour)
	end := epoch
	cases := []struct {
		name string
		in   NewActivity
	}{
		{"empty name", NewActivity{}},
		{"unknown situation", NewActivity{Name: "x", Situation: "later"}},
		{"end before start", NewActivity{Name: "x", StartTime: &start, EndTime: &end}},
		{"unknown owner", NewActivity{Name: "x", UserID: "ghost"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.activities.Create(ctx, "alice", tc.in)
			assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
		})
	}

	_, err := f.activities.Create(ctx, "", NewActivity{Name: "x"})
	assert.True(t, errors.Is(err, common.ErrUnauthenticated), "got %v", err)

	_, err = f.activities.Update(ctx, "alice", ActivityPatch{ID: 999})
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)
}

func TestReminders_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice", "bob")

	r, err := f.reminders.Create(ctx, "alice", NewReminder{Content: "buy milk"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	content := "buy oat milk"
	updated, err := f.reminders.Update(ctx, "alice", ReminderPatch{ID: r.ID, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, content, updated.Content)
	assert.Equal(t, epoch, updated.CreationTime)
	assert.Equal(t, epoch.Add(time.Minute), updated.ModificationTime)

	err = f.reminders.Delete(ctx, "bob", r.ID)
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)

	require.NoError(t, f.reminders.Delete(ctx, "alice", r.ID))
	err = f.reminders.Delete(ctx, "alice", r.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound), "got %v", err)

	_, err = f.reminders.Create(ctx, "alice", NewReminder{Content: "  "})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
}

type articleStub map[int64]*models.ArticleDetails

func (a articleStub) Article(_ context.Context, id int64) (*models.ArticleDetails, error) {
	if d, ok := a[id]; ok {
		return d, nil
	}
	return nil, common.ErrUpstreamParse
}

func TestFavorites_ListResolvesDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, articleStub{1: {Title: "Autumn diet"}})
	f.register(t, "alice")

	_, err := f.favorites.Create(ctx, "alice", NewFavorite{ArticleID: 1})
	require.NoError(t, err)
	_, err = f.favorites.Create(ctx, "alice", NewFavorite{ArticleID: 2})
	require.NoError(t, err)

	list, err := f.favorites.List(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, list, 2)

	byArticle := map[int64]models.FavoriteView{}
	for _, v := range list {
		byArticle[v.ArticleID] = v
	}
	require.NotNil(t, byArticle[1].Details)
	assert.Equal(t, "Autumn diet", byArticle[1].Details.Title)
	assert.Nil(t, byArticle[2].Details)

	_, err = f.favorites.Create(ctx, "alice", NewFavorite{})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
}

func TestRelations_CreateWithPermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice", "bob")
	require.NoError(t, f.identity.SetMeta(ctx, "bob", models.MetaName, "Bob"))

	rel, err := f.relations.Create(ctx, "alice", NewRelation{ToUserID: "bob", Relation: " son ", Permission: true})
	require.NoError(t, err)
	assert.Equal(t, "son", rel.Relation)

	require.NoError(t, f.permissions.EnsurePermitted(ctx, "bob", "alice"))

	list, err := f.relations.List(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Name)
	assert.Equal(t, "Bob", *list[0].Name)

	_, err = f.relations.Create(ctx, "alice", NewRelation{ToUserID: "alice"})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
	_, err = f.relations.Create(ctx, "alice", NewRelation{ToUserID: "ghost"})
	assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)

	updated, err := f.relations.Update(ctx, "bob", RelationPatch{ID: rel.ID, Relation: "eldest son"})
	require.NoError(t, err, "bob acts as alice")
	assert.Equal(t, "eldest son", updated.Relation)

	require.NoError(t, f.relations.Delete(ctx, "alice", rel.ID))
}

func TestRelations_GrantFailureLeavesNoRelation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.register(t, "alice", "bob")

	f.store.failNext("CreateRelation.grant", errors.New("connection reset"))
	_, err := f.relations.Create(ctx, "alice", NewRelation{ToUserID: "bob", Relation: "son", Permission: true})
	require.Error(t, err)

	list, err := f.relations.List(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, list)
	err = f.permissions.EnsurePermitted(ctx, "bob", "alice")
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)

	_, err = f.relations.Create(ctx, "alice", NewRelation{ToUserID: "bob", Relation: "son", Permission: true})
	require.NoError(t, err)
	require.NoError(t, f.permissions.EnsurePermitted(ctx, "bob", "alice"))
}

func TestRelations_ListVerbose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, articleStub{1: {Title: "Autumn diet"}})
	f.register(t, "alice", "bob", "carol")

	// bob lets alice act as him; carol does not.
	_, err := f.permissions.Grant(ctx, "bob", "alice")
	require.NoError(t, err)
	_, err = f.favorites.Create(ctx, "bob", NewFavorite{ArticleID: 1})
	require.NoError(t, err)
	_, err = f.activities.Create(ctx, "carol", NewActivity{Name: "tai chi"})
	require.NoError(t, err)

	_, err = f.relations.Create(ctx, "alice", NewRelation{ToUserID: "bob", Relation: "father"})
	require.NoError(t, err)
	_, err = f.relations.Create(ctx, "alice", NewRelation{ToUserID: "carol", Relation: "neighbour"})
	require.NoError(t, err)

	list, err := f.relations.ListVerbose(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, list, 2)

	byUser := map[string]models.RelativeView{}
	for _, v := range list {
		byUser[v.ToUserID] = v
	}
	bob := byUser["bob"]
	require.Len(t, bob.Favorites, 1)
	assert.Equal(t, int64(1), bob.Favorites[0].ArticleID)
	assert.NotNil(t, bob.Activities)
	assert.Empty(t, bob.Activities)

	carol := byUser["carol"]
	assert.Nil(t, carol.Favorites, "carol has not granted alice")
	assert.Nil(t, carol.Activities)

	_, err = f.relations.ListVerbose(ctx, "bob", "alice")
	assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)
}
