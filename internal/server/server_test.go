package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toursapp/internal/auth"
	"toursapp/internal/config"
	"toursapp/internal/reviews"
	"toursapp/internal/tours"
)

type fakeUserStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]*auth.User
	hash  auth.PasswordHasher
}

func newFakeUserStore(hasher auth.PasswordHasher) *fakeUserStore {
	return &fakeUserStore{users: map[string]*auth.User{}, hash: hasher}
}

func (f *fakeUserStore) Create(_ context.Context, p auth.CreateUserParams) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.ToLower(p.Email)
	for _, u := range f.users {
		if u.Email == email || u.Username == p.Username {
			return nil, auth.ErrDuplicate
		}
	}

	hashed, err := f.hash.Hash(p.Password)
	if err != nil {
		return nil, err
	}

	role := auth.RoleUser
	if len(f.users) == 0 {
		role = auth.RoleAdmin
	}

	f.seq++
	u := &auth.User{
		ID:           "user-" + strconv.Itoa(f.seq),
		Name:         p.Name,
		Username:     p.Username,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		TOTPSecret:   p.TOTPSecret,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if p.VerificationToken != "" {
		token := p.VerificationToken
		u.VerificationToken = &token
	}
	f.users[u.ID] = u
	return copyUser(u), nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) && u.Active {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok && u.Active {
		return copyUser(u), nil
	}
	return nil, nil
}

func (f *fakeUserStore) FindByResetTokenHash(_ context.Context, tokenHash string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Active && u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetTokenExpires != nil && u.ResetTokenExpires.After(time.Now()) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) List(_ context.Context) ([]auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auth.User
	for _, u := range f.users {
		if u.Active {
			out = append(out, *copyUser(u))
		}
	}
	return out, nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, userID, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	hashed, err := f.hash.Hash(password)
	if err != nil {
		return err
	}
	changed := time.Now().Add(-time.Second)
	u.PasswordHash = hashed
	u.PasswordChangedAt = &changed
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil
	return nil
}

func (f *fakeUserStore) SetVerified(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	now := time.Now()
	u.Verified = true
	u.VerifiedAt = &now
	u.VerificationToken = nil
	return nil
}

func (f *fakeUserStore) SetPasswordReset(_ context.Context, userID, tokenHash string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpires = &expires
	return nil
}

func (f *fakeUserStore) ClearPasswordReset(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[userID]
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil
	return nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, userID string, name, email *string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok || !u.Active {
		return nil, nil
	}
	if name != nil {
		u.Name = *name
	}
	if email != nil {
		lowered := strings.ToLower(*email)
		for id, other := range f.users {
			if id != userID && other.Email == lowered {
				return nil, auth.ErrDuplicate
			}
		}
		u.Email = lowered
	}
	return copyUser(u), nil
}

func (f *fakeUserStore) UpdateRole(_ context.Context, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].Role = role
	return nil
}

func (f *fakeUserStore) Deactivate(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID].Active = false
	return nil
}

// mutate edits the stored record directly, for test setup only.
func (f *fakeUserStore) mutate(userID string, fn func(*auth.User)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.users[userID])
}

func copyUser(u *auth.User) *auth.User {
	clone := *u
	return &clone
}

type fakeSessionStore struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*auth.RefreshSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*auth.RefreshSession{}}
}

func (f *fakeSessionStore) Create(_ context.Context, sess auth.RefreshSession) (*auth.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	sess.ID = "sess-" + strconv.Itoa(f.seq)
	sess.Valid = true
	sess.CreatedAt = time.Now()
	f.sessions[sess.UserID] = &sess
	clone := sess
	return &clone, nil
}

func (f *fakeSessionStore) FindByUser(_ context.Context, userID string) (*auth.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.sessions[userID]; ok {
		clone := *sess
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeSessionStore) FindValid(_ context.Context, userID, value string) (*auth.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.sessions[userID]; ok && sess.Valid && sess.Value == value {
		clone := *sess
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeSessionStore) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID)
	return nil
}

func (f *fakeSessionStore) invalidate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.sessions[userID]; ok {
		sess.Valid = false
	}
}

type fakeTourStore struct {
	mu    sync.Mutex
	seq   int
	tours map[string]*tours.Tour
}

func newFakeTourStore() *fakeTourStore {
	return &fakeTourStore{tours: map[string]*tours.Tour{}}
}

func (f *fakeTourStore) List(_ context.Context, q tours.ListQuery) ([]tours.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tours.Tour
	for _, t := range f.tours {
		out = append(out, *t)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeTourStore) Create(_ context.Context, t tours.Tour) (*tours.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.tours {
		if existing.Name == t.Name {
			return nil, tours.ErrDuplicateName
		}
	}
	f.seq++
	t.ID = "tour-" + strconv.Itoa(f.seq)
	t.CreatedAt = time.Now()
	f.tours[t.ID] = &t
	clone := t
	return &clone, nil
}

func (f *fakeTourStore) FindByID(_ context.Context, id string) (*tours.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tours[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeTourStore) Update(_ context.Context, t tours.Tour) (*tours.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.tours[t.ID]
	if !ok {
		return nil, nil
	}
	created := existing.CreatedAt
	*existing = t
	existing.CreatedAt = created
	clone := *existing
	return &clone, nil
}

func (f *fakeTourStore) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tours[id]; !ok {
		return false, nil
	}
	delete(f.tours, id)
	return true, nil
}

type fakeReviewStore struct {
	mu      sync.Mutex
	seq     int
	reviews map[string]*reviews.Review
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{reviews: map[string]*reviews.Review{}}
}

func (f *fakeReviewStore) List(_ context.Context, tourID string) ([]reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []reviews.Review
	for _, rev := range f.reviews {
		if tourID == "" || rev.TourID == tourID {
			out = append(out, *rev)
		}
	}
	return out, nil
}

func (f *fakeReviewStore) Create(_ context.Context, rev reviews.Review) (*reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rev.ID = "review-" + strconv.Itoa(f.seq)
	rev.CreatedAt = time.Now()
	rev.UpdatedAt = rev.CreatedAt
	f.reviews[rev.ID] = &rev
	clone := rev
	return &clone, nil
}

func (f *fakeReviewStore) FindByID(_ context.Context, id string) (*reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rev, ok := f.reviews[id]; ok {
		clone := *rev
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeReviewStore) Update(_ context.Context, id string, rating int, comment string) (*reviews.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rev, ok := f.reviews[id]
	if !ok {
		return nil, nil
	}
	rev.Rating = rating
	rev.Comment = comment
	rev.UpdatedAt = time.Now()
	clone := *rev
	return &clone, nil
}

func (f *fakeReviewStore) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reviews[id]; !ok {
		return false, nil
	}
	delete(f.reviews, id)
	return true, nil
}

// plainHasher trades bcrypt's work factor for test speed.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) bool {
	return hash == "hashed:"+password
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (f *fakeMailer) last() *sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return &f.sent[len(f.sent)-1]
}

type testEnv struct {
	srv      *Server
	router   http.Handler
	users    *fakeUserStore
	sessions *fakeSessionStore
	tours    *fakeTourStore
	reviews  *fakeReviewStore
	mailer   *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		Port:             "8080",
		Env:              "test",
		BaseURL:          "http://localhost:8080",
		TOTPIssuer:       "My Tours",
		AccessTokenTTL:   time.Hour,
		RefreshTokenTTL:  24 * time.Hour,
		AccessCookieTTL:  time.Hour,
		RefreshCookieTTL: 24 * time.Hour,
		ResetTokenTTL:    10 * time.Minute,
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte("test-secret"),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Issuer:     cfg.BaseURL,
	})
	require.NoError(t, err)

	hasher := plainHasher{}
	users := newFakeUserStore(hasher)
	sessions := newFakeSessionStore()
	tourStore := newFakeTourStore()
	reviewStore := newFakeReviewStore()
	mailer := &fakeMailer{}

	srv := NewServer(cfg, users, sessions, tourStore, reviewStore, tokens,
		auth.NewTOTPService(cfg.TOTPIssuer), hasher, nil, mailer)

	return &testEnv{
		srv:      srv,
		router:   srv.Router(),
		users:    users,
		sessions: sessions,
		tours:    tourStore,
		reviews:  reviewStore,
		mailer:   mailer,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:51234"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signupUser registers an account through the API and returns its id and
// the auth cookies from the signup response.
func (e *testEnv) signupUser(t *testing.T, name, username, emailAddr, password string) (string, []*http.Cookie) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/signup", map[string]string{
		"name":            name,
		"username":        username,
		"email":           emailAddr,
		"password":        password,
		"passwordConfirm": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	user := body["data"].(map[string]interface{})["user"].(map[string]interface{})
	return user["id"].(string), rec.Result().Cookies()
}

// verifiedUser signs up and marks the account verified directly in the
// store, skipping the email roundtrip.
func (e *testEnv) verifiedUser(t *testing.T, name, username, emailAddr, password string) string {
	t.Helper()
	id, _ := e.signupUser(t, name, username, emailAddr, password)
	require.NoError(t, e.users.SetVerified(context.Background(), id))
	return id
}

// login authenticates and returns the response cookies.
func (e *testEnv) login(t *testing.T, emailAddr, password string) []*http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email":    emailAddr,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Result().Cookies()
}
