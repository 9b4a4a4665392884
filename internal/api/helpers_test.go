package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qrintake/internal/auth"
	"qrintake/internal/config"
	"qrintake/internal/database/dbtest"
)

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://storage.example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func (s *fakeStorage) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.uploaded))
	for k := range s.uploaded {
		keys = append(keys, k)
	}
	return keys
}

var (
	keyOnce sync.Once
	keyPriv []byte
	keyPub  []byte
	keyErr  error
)

// newTestAuth signs with a key generated once per test binary.
func newTestAuth(t *testing.T) *auth.AuthService {
	t.Helper()
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			keyErr = err
			return
		}
		keyPriv = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			keyErr = err
			return
		}
		keyPub = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	})
	require.NoError(t, keyErr)

	svc, err := auth.NewAuthService(keyPriv, keyPub, time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			Port:           8080,
			PublicBaseURL:  "https://apply.example.com",
			InternalSecret: "metrics-secret",
		},
		Upload: config.UploadConfig{
			MaxResumeBytes: 1 << 20,
			AllowedMIME: []string{
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			},
		},
		Intake: config.IntakeConfig{
			ApplicationTypes: []string{"interview", "reason"},
			EnforceGeofence:  true,
		},
		RateLimit: config.RateLimitConfig{PublicPerMinute: 1000},
	}
}

type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	storage *fakeStorage
	auth    *auth.AuthService
	redis   *redis.Client
	mr      *miniredis.Miniredis
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		db:      dbtest.Open(t),
		storage: newFakeStorage(),
		auth:    newTestAuth(t),
		redis:   client,
		mr:      mr,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.router = NewRouter(cfg, logger)
	RegisterRoutes(env.router, Deps{
		Config:  cfg,
		DB:      env.db,
		Redis:   client,
		Auth:    env.auth,
		Storage: env.storage,
		Logger:  logger,
	})
	return env
}

func (e *testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	pair, err := e.auth.GenerateTokenPair(userID)
	require.NoError(t, err)
	return pair.AccessToken
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// doJSON sends body as JSON, authenticated as userID unless it is zero.
func (e *testEnv) doJSON(t *testing.T, method, path string, userID uint, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	return e.serve(req)
}

type formFile struct {
	name    string
	content []byte
}

func multipartRequest(t *testing.T, path string, values map[string]string, file *formFile) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range values {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		part, err := writer.CreateFormFile("resume", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body=%s", w.Body.String())
	return out
}

func hasPrefix(keys []string, prefix string) bool {
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
