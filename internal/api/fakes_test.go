package api

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
)

// memStore is an in-memory stand-in for Postgres shared by the fake
// repositories below. It mirrors the constraints the schema enforces:
// unique usernames, FK checks on tag ids and recommendation ids, unique
// follow edges and cascading deletes.
type memStore struct {
	mu sync.Mutex

	nextID   int64
	users    map[int64]*models.User
	tags     map[int64]*models.Tag
	recs     map[int64]*models.Recommendation
	recTags  map[int64][]int64
	comments map[int64]*models.Comment
	follows  []models.Follow
	saves    map[saveKey]models.SavedRecommendation
}

type saveKey struct {
	userID int64
	recID  int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		tags:     make(map[int64]*models.Tag),
		recs:     make(map[int64]*models.Recommendation),
		recTags:  make(map[int64][]int64),
		comments: make(map[int64]*models.Comment),
		saves:    make(map[saveKey]models.SavedRecommendation),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) summary(userID int64) models.UserSummary {
	u := m.users[userID]
	if u == nil {
		return models.UserSummary{ID: userID}
	}
	return models.UserSummary{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

func (m *memStore) followCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.follows)
}

func (m *memStore) commentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.comments)
}

func (m *memStore) recCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

// --- users ---

type fakeUsers struct{ *memStore }

func (f fakeUsers) Create(_ context.Context, username, email, passwordHash string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return nil, repository.ErrDuplicate
		}
	}
	now := time.Now()
	u := &models.User{
		ID:           f.id(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f fakeUsers) GetByID(_ context.Context, userID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) UpdateAvatar(_ context.Context, userID int64, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.AvatarURL = avatarURL
	u.UpdatedAt = time.Now()
	return nil
}

func (f fakeUsers) Delete(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.users, userID)

	for id, r := range f.recs {
		if r.UserID == userID {
			f.deleteRecLocked(id)
		}
	}
	for id, c := range f.comments {
		if c.UserID == userID {
			delete(f.comments, id)
		}
	}
	f.follows = slices.DeleteFunc(f.follows, func(fl models.Follow) bool {
		return fl.Follower.ID == userID || fl.Followee.ID == userID
	})
	for k := range f.saves {
		if k.userID == userID {
			delete(f.saves, k)
		}
	}
	return nil
}

func (f fakeUsers) Profile(_ context.Context, userID int64) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	p := &models.Profile{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Followees: make([]models.UserSummary, 0),
		CreatedAt: u.CreatedAt,
	}
	for _, fl := range f.follows {
		if fl.Follower.ID == userID {
			p.Followees = append(p.Followees, f.summary(fl.Followee.ID))
			p.FolloweeCount++
		}
		if fl.Followee.ID == userID {
			p.FollowerCount++
		}
	}
	return p, nil
}

// --- tags ---

type fakeTags struct{ *memStore }

func (f fakeTags) Create(_ context.Context, label string) (*models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	t := &models.Tag{ID: f.id(), Label: label, CreatedAt: now, UpdatedAt: now}
	f.tags[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f fakeTags) GetByID(_ context.Context, tagID int64) (*models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tags[tagID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f fakeTags) List(_ context.Context) ([]models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tags := make([]models.Tag, 0, len(f.tags))
	for _, t := range f.tags {
		tags = append(tags, *t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID > tags[j].ID })
	return tags, nil
}

func (f fakeTags) Update(_ context.Context, tagID int64, label string) (*models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tags[tagID]
	if !ok {
		return nil, nil
	}
	t.Label = label
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (f fakeTags) Delete(_ context.Context, tagID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tags[tagID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.tags, tagID)
	for recID, ids := range f.recTags {
		f.recTags[recID] = slices.DeleteFunc(ids, func(id int64) bool { return id == tagID })
	}
	return nil
}

// --- recommendations ---

type fakeRecs struct{ *memStore }

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (f fakeRecs) Create(_ context.Context, ownerID int64, in repository.RecommendationInput) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[ownerID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	for _, id := range in.TagIDs {
		if _, ok := f.tags[id]; !ok {
			return nil, repository.ErrInvalidReference
		}
	}
	now := time.Now()
	r := &models.Recommendation{
		ID:               f.id(),
		UserID:           ownerID,
		Title:            in.Title,
		Medium:           in.Medium,
		Description:      in.Description,
		Reason:           in.Reason,
		IMDbID:           in.IMDbID,
		Poster:           in.Poster,
		Genre:            orEmpty(in.Genre),
		StreamingService: orEmpty(in.StreamingService),
		RelatedShows:     orEmpty(in.RelatedShows),
		Keywords:         orEmpty(in.Keywords),
		Actors:           orEmpty(in.Actors),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.recs[r.ID] = r
	f.recTags[r.ID] = slices.Clone(in.TagIDs)
	return f.viewLocked(r), nil
}

func (f fakeRecs) viewLocked(r *models.Recommendation) *models.Recommendation {
	cp := *r
	cp.Username = f.summary(r.UserID).Username
	cp.Tags = make([]models.Tag, 0)
	for _, id := range f.recTags[r.ID] {
		if t, ok := f.tags[id]; ok {
			cp.Tags = append(cp.Tags, *t)
		}
	}
	cp.SavedCount = 0
	for k := range f.saves {
		if k.recID == r.ID {
			cp.SavedCount++
		}
	}
	return &cp
}

func (f fakeRecs) GetByID(_ context.Context, recID int64) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[recID]
	if !ok {
		return nil, nil
	}
	return f.viewLocked(r), nil
}

func (f fakeRecs) List(_ context.Context, filter repository.RecommendationFilter) ([]models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs := make([]models.Recommendation, 0)
	for _, r := range f.recs {
		if !matches(r, filter, f.recTags[r.ID]) {
			continue
		}
		recs = append(recs, *f.viewLocked(r))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID > recs[j].ID })

	start := min(int(filter.Offset), len(recs))
	recs = recs[start:]
	if filter.Limit > 0 && int(filter.Limit) < len(recs) {
		recs = recs[:filter.Limit]
	}
	return recs, nil
}

func matches(r *models.Recommendation, f repository.RecommendationFilter, tagIDs []int64) bool {
	switch {
	case f.ID != 0 && r.ID != f.ID,
		f.UserID != 0 && r.UserID != f.UserID,
		f.Title != "" && r.Title != f.Title,
		f.IMDbID != "" && r.IMDbID != f.IMDbID,
		f.Medium != "" && r.Medium != f.Medium,
		f.TagID != 0 && !slices.Contains(tagIDs, f.TagID):
		return false
	}
	for _, term := range strings.Fields(strings.ToLower(f.Search)) {
		if !strings.Contains(strings.ToLower(r.Title), term) &&
			!strings.Contains(strings.ToLower(r.Description), term) &&
			!strings.Contains(strings.ToLower(r.IMDbID), term) {
			return false
		}
	}
	return true
}

func (f fakeRecs) Update(_ context.Context, recID int64, p repository.RecommendationPatch) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[recID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.TagIDs != nil {
		for _, id := range *p.TagIDs {
			if _, ok := f.tags[id]; !ok {
				return nil, repository.ErrInvalidReference
			}
		}
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setSlice := func(dst *[]string, src *[]string) {
		if src != nil {
			*dst = orEmpty(*src)
		}
	}
	setString(&r.Title, p.Title)
	setString(&r.Medium, p.Medium)
	setString(&r.Description, p.Description)
	setString(&r.Reason, p.Reason)
	setString(&r.IMDbID, p.IMDbID)
	switch {
	case p.ClearPoster:
		r.Poster = nil
	case p.Poster != nil:
		r.Poster = p.Poster
	}
	setSlice(&r.Genre, p.Genre)
	setSlice(&r.StreamingService, p.StreamingService)
	setSlice(&r.RelatedShows, p.RelatedShows)
	setSlice(&r.Keywords, p.Keywords)
	setSlice(&r.Actors, p.Actors)
	if p.TagIDs != nil {
		f.recTags[recID] = slices.Clone(*p.TagIDs)
	}
	r.UpdatedAt = time.Now()
	return f.viewLocked(r), nil
}

func (f fakeRecs) Delete(_ context.Context, recID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recs[recID]; !ok {
		return repository.ErrNotFound
	}
	f.deleteRecLocked(recID)
	return nil
}

func (m *memStore) deleteRecLocked(recID int64) {
	delete(m.recs, recID)
	delete(m.recTags, recID)
	for id, c := range m.comments {
		if c.RecommendationID == recID {
			delete(m.comments, id)
		}
	}
	for k := range m.saves {
		if k.recID == recID {
			delete(m.saves, k)
		}
	}
}

// --- comments ---

type fakeComments struct{ *memStore }

func (f fakeComments) Create(_ context.Context, recID, userID int64, body string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recs[recID]; !ok {
		return nil, repository.ErrInvalidReference
	}
	now := time.Now()
	c := &models.Comment{
		ID:               f.id(),
		UserID:           userID,
		Username:         f.summary(userID).Username,
		RecommendationID: recID,
		Body:             body,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.comments[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f fakeComments) GetByID(_ context.Context, commentID int64) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[commentID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f fakeComments) ListByRecommendation(_ context.Context, recID int64, page repository.Page) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comments := make([]models.Comment, 0)
	for _, c := range f.comments {
		if c.RecommendationID == recID {
			comments = append(comments, *c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	start := min(int(page.Offset), len(comments))
	comments = comments[start:]
	if page.Limit > 0 && int(page.Limit) < len(comments) {
		comments = comments[:page.Limit]
	}
	return comments, nil
}

func (f fakeComments) Delete(_ context.Context, commentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[commentID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.comments, commentID)
	return nil
}

// --- follows ---

type fakeFollows struct{ *memStore }

func (f fakeFollows) Create(_ context.Context, followerID, followeeID int64) (*models.Follow, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[followeeID]; !ok {
		return nil, false, repository.ErrInvalidReference
	}
	for _, fl := range f.follows {
		if fl.Follower.ID == followerID && fl.Followee.ID == followeeID {
			return nil, false, nil
		}
	}
	fl := models.Follow{
		ID:        f.id(),
		Follower:  f.summary(followerID),
		Followee:  f.summary(followeeID),
		CreatedAt: time.Now(),
	}
	f.follows = append(f.follows, fl)
	return &fl, true, nil
}

func (f fakeFollows) Delete(_ context.Context, followerID, followeeID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.follows)
	f.follows = slices.DeleteFunc(f.follows, func(fl models.Follow) bool {
		return fl.Follower.ID == followerID && fl.Followee.ID == followeeID
	})
	if len(f.follows) == before {
		return repository.ErrNotFound
	}
	return nil
}

func (f fakeFollows) ListFollowers(_ context.Context, userID int64) ([]models.Follow, error) {
	return f.list(func(fl models.Follow) bool { return fl.Followee.ID == userID }), nil
}

func (f fakeFollows) ListFollowees(_ context.Context, userID int64) ([]models.Follow, error) {
	return f.list(func(fl models.Follow) bool { return fl.Follower.ID == userID }), nil
}

func (f fakeFollows) list(keep func(models.Follow) bool) []models.Follow {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Follow, 0)
	for _, fl := range f.follows {
		if keep(fl) {
			out = append(out, fl)
		}
	}
	return out
}

// --- saves ---

type fakeSaves struct{ *memStore }

func (f fakeSaves) Save(_ context.Context, userID, recID int64, status models.SaveStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recs[recID]; !ok {
		return repository.ErrInvalidReference
	}
	k := saveKey{userID, recID}
	entry, ok := f.saves[k]
	if ok && entry.Status == status {
		return nil
	}
	f.saves[k] = models.SavedRecommendation{Status: status, SavedAt: time.Now()}
	return nil
}

func (f fakeSaves) Remove(_ context.Context, userID, recID int64, status models.SaveStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := saveKey{userID, recID}
	entry, ok := f.saves[k]
	if !ok || (status != "" && entry.Status != status) {
		return repository.ErrNotFound
	}
	delete(f.saves, k)
	return nil
}

func (f fakeSaves) List(_ context.Context, userID int64, status models.SaveStatus) ([]models.SavedRecommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.SavedRecommendation, 0)
	for k, entry := range f.saves {
		if k.userID != userID || (status != "" && entry.Status != status) {
			continue
		}
		entry.Recommendation = *fakeRecs{f.memStore}.viewLocked(f.recs[k.recID])
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

// --- collaborators ---

// recordingCache is a ProfileCache that remembers invalidations.
type recordingCache struct {
	mu          sync.Mutex
	profiles    map[int64]models.Profile
	invalidated []int64
}

func newRecordingCache() *recordingCache {
	return &recordingCache{profiles: make(map[int64]models.Profile)}
}

func (c *recordingCache) Get(_ context.Context, userID int64) (*models.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *recordingCache) Set(_ context.Context, p *models.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.ID] = *p
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, userIDs ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.profiles, id)
	}
	c.invalidated = append(c.invalidated, userIDs...)
	return nil
}

func (c *recordingCache) invalidations() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.invalidated)
}

type okPinger struct{}

func (okPinger) Health(context.Context) error { return nil }

// denyAfter lets the first n calls through and rejects the rest.
type denyAfter struct {
	mu sync.Mutex
	n  int
}

func (d *denyAfter) Allow(string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.n <= 0 {
		return false
	}
	d.n--
	return true
}
