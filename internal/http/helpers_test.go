package http

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"

	"event-board/internal/auth"
	"event-board/internal/domain"
	"event-board/internal/repository/sqlite"
	"event-board/internal/service"
	"event-board/internal/storage"
)

type testServer struct {
	router   *gin.Engine
	db       *sql.DB
	accounts service.AccountService
	events   service.EventService
	tokens   *auth.TokenCodec
	images   *memoryStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(ctx))
	eventRepo := sqlite.NewEventRepository(db)
	require.NoError(t, eventRepo.Init(ctx))

	tokens, err := auth.NewTokenCodec(auth.TokenConfig{Secret: "test-secret", Algorithm: "HS256", TTL: time.Hour})
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	images := &memoryStorage{objects: map[string]string{}}
	accounts := service.NewAccountService(users, auth.PasswordHasher{Rounds: 1000}, tokens)
	events := service.NewEventService(eventRepo, service.ImageStorage{
		Service:   images,
		Bucket:    "test-bucket",
		KeyPrefix: "event-images",
	}, logger)

	handler, err := NewHandler(Dependencies{
		Events:   events,
		Accounts: accounts,
		Sessions: auth.NewSessionResolver(tokens, users),
		DB:       db,
		Logger:   logger,
		AppName:  "Event Board",
		TokenTTL: tokens.TTL(),
	})
	require.NoError(t, err)

	router := gin.New()
	handler.RegisterRoutes(router)

	return &testServer{
		router:   router,
		db:       db,
		accounts: accounts,
		events:   events,
		tokens:   tokens,
		images:   images,
	}
}

func (s *testServer) api() *apitest.APITest {
	return apitest.New().Handler(s.router)
}

func (s *testServer) signUp(t *testing.T, email string) (*domain.User, string) {
	t.Helper()
	user, token, err := s.accounts.SignUp(context.Background(), email, "secret1")
	require.NoError(t, err)
	return user, token
}

func (s *testServer) createEvent(t *testing.T, input service.EventInput) *domain.Event {
	t.Helper()
	event, err := s.events.CreateEvent(context.Background(), input)
	require.NoError(t, err)
	return event
}

func bearer(token string) string {
	return "Bearer " + token
}

func ptr[T any](v T) *T {
	return &v
}

func at(day, hour int) time.Time {
	return time.Date(2026, time.May, day, hour, 0, 0, 0, time.UTC)
}

func bodyContains(substr string) apitest.Assert {
	return func(res *http.Response, _ *http.Request) error {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if !strings.Contains(string(body), substr) {
			return fmt.Errorf("body does not contain %q", substr)
		}
		return nil
	}
}

func bodyNotContains(substr string) apitest.Assert {
	return func(res *http.Response, _ *http.Request) error {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if strings.Contains(string(body), substr) {
			return fmt.Errorf("body unexpectedly contains %q", substr)
		}
		return nil
	}
}

// bodyInOrder checks that every substring appears, each after the previous.
func bodyInOrder(substrs ...string) apitest.Assert {
	return func(res *http.Response, _ *http.Request) error {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		rest := string(body)
		for _, substr := range substrs {
			idx := strings.Index(rest, substr)
			if idx < 0 {
				return fmt.Errorf("body does not contain %q after the previous entries", substr)
			}
			rest = rest[idx+len(substr):]
		}
		return nil
	}
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

var _ storage.Service = (*memoryStorage)(nil)

func (m *memoryStorage) UploadObject(_ context.Context, key string, body io.Reader, opts storage.UploadOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(data)
	return "s3://" + opts.Bucket + "/" + key, nil
}

func (m *memoryStorage) DeletePrefix(_ context.Context, _ string, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

func (m *memoryStorage) GetObjectURL(_ context.Context, _ string, key string, _ time.Duration) (string, error) {
	return "https://images.test/" + key, nil
}

func (m *memoryStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys
}
