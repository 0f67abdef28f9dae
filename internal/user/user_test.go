package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/profilepic/internal/avatar"
	"github.com/radif/profilepic/internal/middleware"
	"github.com/radif/profilepic/internal/storage"
)

const testUserID = "e7eedc79-0707-4fe4-8734-526b7ef13a7b"

type stubRepo struct {
	mu      sync.Mutex
	users   map[string]*User
	getErr  error
	saveErr error
}

func newStubRepo(users ...*User) *stubRepo {
	r := &stubRepo{users: make(map[string]*User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubRepo) SetAvatarURL(_ context.Context, id, url string) (*User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, "", r.saveErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	previous := ""
	if u.AvatarURL != nil {
		previous = *u.AvatarURL
	}
	u.AvatarURL = &url
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, previous, nil
}

// brokenStore fails the bucket check or the object write.
type brokenStore struct {
	*storage.MemoryStorage
	existsErr error
	uploadErr error
}

func (s brokenStore) BucketExists(ctx context.Context, b string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.MemoryStorage.BucketExists(ctx, b)
}

func (s brokenStore) Upload(ctx context.Context, b, key string, r io.Reader, size int64, ct string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	return s.MemoryStorage.Upload(ctx, b, key, r, size, ct)
}

func newUser() *User {
	return &User{ID: testUserID, Phone: "09121234567", CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(middleware.WithUserID(req.Context(), testUserID))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestService_UpdateAvatar_ReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage("http://localhost:9000")
	uploader := avatar.New(store, avatar.DefaultBucket)
	repo := newStubRepo(newUser())
	svc := NewService(repo, uploader)

	first, err := svc.UpdateAvatar(ctx, testUserID, bytes.NewReader(jpegBytes(t, 100, 100)))
	require.NoError(t, err)
	require.NotNil(t, first.AvatarURL)
	assert.True(t, strings.HasPrefix(*first.AvatarURL, "http://localhost:9000/profile-pictures/"))
	assert.True(t, strings.HasSuffix(*first.AvatarURL, ".png"))

	second, err := svc.UpdateAvatar(ctx, testUserID, bytes.NewReader(jpegBytes(t, 300, 40)))
	require.NoError(t, err)
	assert.NotEqual(t, *first.AvatarURL, *second.AvatarURL)

	assert.Equal(t, 1, store.Len(avatar.DefaultBucket), "previous avatar should be removed")
	key, ok := uploader.KeyFromURL(*second.AvatarURL)
	require.True(t, ok)
	_, ok = store.Object(avatar.DefaultBucket, key)
	assert.True(t, ok)
}

func TestService_UpdateAvatar_KeepsForeignPrevious(t *testing.T) {
	u := newUser()
	external := "https://gravatar.com/avatar/abc"
	u.AvatarURL = &external

	store := storage.NewMemoryStorage("http://localhost:9000")
	svc := NewService(newStubRepo(u), avatar.New(store, avatar.DefaultBucket))

	updated, err := svc.UpdateAvatar(context.Background(), testUserID, bytes.NewReader(jpegBytes(t, 10, 10)))
	require.NoError(t, err)
	assert.NotEqual(t, external, *updated.AvatarURL)
	assert.Equal(t, 1, store.Len(avatar.DefaultBucket))
}

func TestService_UpdateAvatar_UnknownUserSkipsUpload(t *testing.T) {
	store := storage.NewMemoryStorage("http://localhost:9000")
	svc := NewService(newStubRepo(), avatar.New(store, avatar.DefaultBucket))

	_, err := svc.UpdateAvatar(context.Background(), testUserID, bytes.NewReader(jpegBytes(t, 10, 10)))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len(avatar.DefaultBucket))
}

func TestService_UpdateAvatar_SaveFailureRemovesUpload(t *testing.T) {
	store := storage.NewMemoryStorage("http://localhost:9000")
	repo := newStubRepo(newUser())
	repo.saveErr = errors.New("connection reset")
	svc := NewService(repo, avatar.New(store, avatar.DefaultBucket))

	_, err := svc.UpdateAvatar(context.Background(), testUserID, bytes.NewReader(jpegBytes(t, 10, 10)))
	assert.ErrorIs(t, err, repo.saveErr)
	assert.Zero(t, store.Len(avatar.DefaultBucket))
}

func TestHandler_UploadAvatar(t *testing.T) {
	unavailable := errors.New("dial tcp: connection refused")
	denied := errors.New("access denied")

	tests := []struct {
		name     string
		store    avatar.Store
		maxBytes int64
		field    string
		filename string
		data     []byte
		status   int
	}{
		{"jpeg ok", nil, avatar.DefaultMaxBytes, "file", "me.jpg", jpegBytes(t, 100, 100), http.StatusOK},
		{"extension ignored", nil, avatar.DefaultMaxBytes, "file", "me.txt", jpegBytes(t, 20, 20), http.StatusOK},
		{"text file", nil, avatar.DefaultMaxBytes, "file", "test.txt", []byte("hello, world"), http.StatusBadRequest},
		{"empty file", nil, avatar.DefaultMaxBytes, "file", "empty.png", nil, http.StatusBadRequest},
		{"missing field", nil, avatar.DefaultMaxBytes, "picture", "me.jpg", jpegBytes(t, 10, 10), http.StatusBadRequest},
		{"too large", nil, 64, "file", "me.jpg", jpegBytes(t, 100, 100), http.StatusRequestEntityTooLarge},
		{"storage unavailable", brokenStore{MemoryStorage: storage.NewMemoryStorage("http://localhost:9000"), existsErr: unavailable}, avatar.DefaultMaxBytes, "file", "me.jpg", jpegBytes(t, 10, 10), http.StatusServiceUnavailable},
		{"storage write", brokenStore{MemoryStorage: storage.NewMemoryStorage("http://localhost:9000"), uploadErr: denied}, avatar.DefaultMaxBytes, "file", "me.jpg", jpegBytes(t, 10, 10), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = storage.NewMemoryStorage("http://localhost:9000")
			}
			uploader := avatar.New(store, avatar.DefaultBucket, avatar.WithMaxBytes(tt.maxBytes))
			h := NewHandler(NewService(newStubRepo(newUser()), uploader), uploader.MaxBytes())

			rec := httptest.NewRecorder()
			h.UploadAvatar(rec, multipartRequest(t, tt.field, tt.filename, tt.data))

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decode(t, rec)
			assert.Equal(t, tt.status == http.StatusOK, env.Success)

			if tt.status == http.StatusOK {
				var data avatarData
				require.NoError(t, json.Unmarshal(env.Data, &data))
				assert.Regexp(t, `^http://localhost:9000/profile-pictures/[0-9a-f-]{36}\.png$`, data.AvatarURL)
				require.NotNil(t, data.User.AvatarURL)
				assert.Equal(t, data.AvatarURL, *data.User.AvatarURL)
			}
		})
	}
}

func TestHandler_UploadAvatar_Unauthenticated(t *testing.T) {
	store := storage.NewMemoryStorage("http://localhost:9000")
	h := NewHandler(NewService(newStubRepo(newUser()), avatar.New(store, avatar.DefaultBucket)), avatar.DefaultMaxBytes)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/me/avatar", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_GetMe(t *testing.T) {
	store := storage.NewMemoryStorage("http://localhost:9000")
	h := NewHandler(NewService(newStubRepo(newUser()), avatar.New(store, avatar.DefaultBucket)), avatar.DefaultMaxBytes)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	h.GetMe(rec, req.WithContext(middleware.WithUserID(req.Context(), testUserID)))

	require.Equal(t, http.StatusOK, rec.Code)
	var u User
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &u))
	assert.Equal(t, testUserID, u.ID)

	rec = httptest.NewRecorder()
	h.GetMe(rec, req.WithContext(middleware.WithUserID(req.Context(), "00000000-0000-0000-0000-000000000000")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GetMe_RepositoryFailure(t *testing.T) {
	repo := newStubRepo(newUser())
	repo.getErr = errors.New("connection refused")
	store := storage.NewMemoryStorage("http://localhost:9000")
	h := NewHandler(NewService(repo, avatar.New(store, avatar.DefaultBucket)), avatar.DefaultMaxBytes)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	h.GetMe(rec, req.WithContext(middleware.WithUserID(req.Context(), testUserID)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decode(t, rec).Success)
}
