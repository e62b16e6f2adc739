package heldorders

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
)

func setupHeldOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	heldOrders := `
CREATE TABLE IF NOT EXISTS held_orders (
  id TEXT PRIMARY KEY,
  version INTEGER NOT NULL DEFAULT 1,
  status TEXT NOT NULL DEFAULT 'held',
  label TEXT NOT NULL,
  customer_name TEXT,
  customer_phone TEXT,
  notes TEXT,
  tags TEXT,
  snapshot TEXT NOT NULL,
  held_at DATETIME NOT NULL,
  resumed_at DATETIME,
  discarded_at DATETIME
);`
	require.NoError(t, db.Exec(heldOrders).Error)
	return db
}

func parkOrder(t *testing.T, repo *Repository, label string, heldAt time.Time) *models.HeldOrder {
	t.Helper()

	order := &models.HeldOrder{
		Label:    label,
		Snapshot: json.RawMessage(`{"items":[],"totals":{"total_cents":0}}`),
		HeldAt:   heldAt,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestRepositoryListHeld_oldestFirst(t *testing.T) {
	db := setupHeldOrdersTestDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	second := parkOrder(t, repo, "counter two", base.Add(5*time.Minute))
	first := parkOrder(t, repo, "counter one", base)
	discarded := parkOrder(t, repo, "walked out", base.Add(time.Minute))
	require.NoError(t, repo.Transition(context.Background(), discarded.ID, enums.HeldOrderStatusDiscarded, base.Add(10*time.Minute)))

	held, err := repo.ListHeld(context.Background())
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, first.ID, held[0].ID)
	assert.Equal(t, second.ID, held[1].ID)
}

func TestRepositoryCreate_appliesDefaults(t *testing.T) {
	db := setupHeldOrdersTestDB(t)
	repo := NewRepository(db)

	order := parkOrder(t, repo, "defaults", time.Now().UTC())

	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, enums.HeldOrderStatusHeld, order.Status)
	assert.Equal(t, 1, order.Version)
}

func TestRepositoryTransition_guardsStatus(t *testing.T) {
	db := setupHeldOrdersTestDB(t)
	repo := NewRepository(db)

	order := parkOrder(t, repo, "guarded", time.Now().UTC())
	at := time.Now().UTC().Add(time.Minute)

	require.NoError(t, repo.Transition(context.Background(), order.ID, enums.HeldOrderStatusResumed, at))

	// Second resume loses the status guard in the WHERE clause.
	err := repo.Transition(context.Background(), order.ID, enums.HeldOrderStatusResumed, at.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyTransitioned)

	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.HeldOrderStatusResumed, stored.Status)
	assert.Equal(t, 2, stored.Version)
	require.NotNil(t, stored.ResumedAt)
}

func TestRepositoryTransition_unknownOrder(t *testing.T) {
	db := setupHeldOrdersTestDB(t)
	repo := NewRepository(db)

	err := repo.Transition(context.Background(), uuid.New(), enums.HeldOrderStatusDiscarded, time.Now().UTC())
	assert.ErrorIs(t, err, ErrAlreadyTransitioned)
}
