package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"laundry-reservation-backend/config"
	"laundry-reservation-backend/internal/api"
	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/notify"
	"laundry-reservation-backend/internal/reserve"
	"laundry-reservation-backend/internal/store"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Send(to string, kind notify.Kind, data notify.Data) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, fmt.Sprintf("%s:%s", kind, to))
	return nil
}

type app struct {
	router   *gin.Engine
	store    store.Store
	notifier *recordingNotifier
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Machine{}, &model.Subscriber{}))

	appStore := store.NewGormStore(db)
	require.NoError(t, appStore.InsertMany(context.Background(), []model.Machine{
		{Name: "Washer 1", DefaultTime: 30},
		{Name: "Washer 2", DefaultTime: 30},
		{Name: "Dryer 1", DefaultTime: 60},
		{Name: "Dryer 2", DefaultTime: 60},
	}))

	pool := notify.NewPool(2)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(cancel)

	notifier := &recordingNotifier{}
	engine := reserve.NewEngine(appStore, notifier, pool, reserve.Options{Location: time.UTC})
	t.Cleanup(engine.Close)

	cfg := &config.Config{
		Server:      config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000},
		Reservation: config.ReservationConfig{MinMinutes: 5, MaxMinutes: 90},
	}
	return &app{router: api.NewRouter(engine, cfg), store: appStore, notifier: notifier}
}

func (a *app) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.router.ServeHTTP(w, req)
	return w
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var resp []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestReservationLifecycle(t *testing.T) {
	a := newApp(t)

	// All four machines start out available.
	w := a.do(t, http.MethodGet, "/api/machines", "")
	require.Equal(t, http.StatusOK, w.Code)
	machines := decodeList(t, w)
	require.Len(t, machines, 4)
	for _, m := range machines {
		assert.Equal(t, "available", m["status"])
	}

	// Claim Washer 1 for half an hour.
	w = a.do(t, http.MethodPost, "/api/machines/1/start", `{"duration": 30, "email": "Owner@Example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// The owner shows up lowercased, subscribed to their own finish warning.
	w = a.do(t, http.MethodGet, "/api/machines/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "inUse", m["status"])
	assert.Equal(t, "owner@example.com", m["currentUserEmail"])
	assert.InDelta(t, 30*60, m["remainingSeconds"].(float64), 5)

	// A second claim on the same machine is rejected; a sibling is fine.
	w = a.do(t, http.MethodPost, "/api/machines/1/start", `{"duration": 45}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = a.do(t, http.MethodPost, "/api/machines/2/start", `{"duration": 45}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// Two waiters line up behind Washer 1; one changes their mind.
	w = a.do(t, http.MethodPost, "/api/machines/1/subscribe", `{"email": "first@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/api/machines/1/subscribe", `{"email": "second@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/api/machines/1/unsubscribe", `{"email": "second@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := a.store.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stored.NotifyUsers, 2)
	assert.True(t, stored.Subscribed("owner@example.com"))
	assert.True(t, stored.Subscribed("first@b.com"))
	assert.False(t, stored.Subscribed("second@b.com"))
}

func TestExpiredReservationIsCleanedUpOnList(t *testing.T) {
	a := newApp(t)

	w := a.do(t, http.MethodPost, "/api/machines/3/start", `{"duration": 60, "email": "owner@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/api/machines/3/subscribe", `{"email": "waiter@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Drag the cycle into the past behind the engine's back, as if the
	// clock had run out while no request was being served.
	past := time.Now().Add(-2 * time.Minute).UTC()
	err := a.store.DB().Model(&model.Machine{}).Where("id = ?", 3).
		Update("end_time", past).Error
	require.NoError(t, err)

	w = a.do(t, http.MethodGet, "/api/machines", "")
	require.Equal(t, http.StatusOK, w.Code)
	machines := decodeList(t, w)
	for _, m := range machines {
		if m["id"].(float64) == 3 {
			assert.Equal(t, "available", m["status"])
			assert.Equal(t, "last used 2 minutes ago", m["lastUsed"])
			assert.Empty(t, m["currentUserEmail"])
		}
	}

	stored, err := a.store.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, stored.InUse)
	assert.Nil(t, stored.EndTime)
	assert.NotNil(t, stored.LastEndTime)
	assert.Empty(t, stored.NotifyUsers)

	// The freed machine can be claimed again right away.
	w = a.do(t, http.MethodPost, "/api/machines/3/start", `{"duration": 30}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
