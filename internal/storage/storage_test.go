package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestJSONStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	order := Order{
		Type:            OrderTypeCommission,
		UserID:          "42",
		UserName:        "hububba",
		TicketChannelID: "c1",
		Title:           "Landing page",
		Details:         "Need a landing page",
		Status:          StatusOpen,
		Budget:          "50-150",
		Deadline:        "ASAP",
		Notes:           "dark theme",
		CreatedAt:       created,
	}
	require.NoError(t, store.Create(ctx, &order))
	require.Equal(t, int64(1), order.ID)

	got, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Title, got.Title)
	require.Equal(t, order.Details, got.Details)
	require.Equal(t, order.Budget, got.Budget)
	require.Equal(t, order.Deadline, got.Deadline)
	require.Equal(t, order.Notes, got.Notes)
	require.Equal(t, order.UserID, got.UserID)
	require.Equal(t, order.TicketChannelID, got.TicketChannelID)
	require.True(t, created.Equal(got.CreatedAt))

	got.Status = StatusInProgress
	got.Notes += "\nstarted"
	require.NoError(t, store.Update(ctx, got))

	updated, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, updated.Status)
	require.Equal(t, "dark theme\nstarted", updated.Notes)
	require.Equal(t, order.Title, updated.Title)
	require.True(t, created.Equal(updated.CreatedAt))
}

func TestJSONStoreIDsAreMaxPlusOne(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// A gap left by hand-edited data must not produce duplicate IDs.
	seed := `[{"id": 1, "user_id": "a", "title": "x", "status": "open"}, {"id": 5, "user_id": "b", "title": "y", "status": "open"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ordersFile), []byte(seed), 0o600))

	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	order := Order{UserID: "c", Status: StatusOpen}
	require.NoError(t, store.Create(ctx, &order))
	require.Equal(t, int64(6), order.ID)
}

func TestJSONStoreConcurrentCreatesAreUnique(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order := Order{UserID: "u", Status: StatusOpen}
			errs <- store.Create(ctx, &order)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	orders, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 20)
	seen := make(map[int64]bool)
	for _, o := range orders {
		require.False(t, seen[o.ID], "duplicate id %d", o.ID)
		seen[o.ID] = true
	}
}

func TestJSONStoreEmptyFileAndNotFound(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ordersFile), []byte("  \n"), 0o600))

	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	orders, err := store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, orders)

	_, err = store.Get(ctx, 3)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Update(ctx, Order{ID: 3}), ErrNotFound)
	_, err = store.FindByChannel(ctx, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStoreFindByChannel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := Order{UserID: "u", TicketChannelID: "c1", Status: StatusOpen}
	second := Order{UserID: "u", TicketChannelID: "c2", Status: StatusOpen}
	require.NoError(t, store.Create(ctx, &first))
	require.NoError(t, store.Create(ctx, &second))

	got, err := store.FindByChannel(ctx, "c2")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
	require.NoError(t, store.Ping(ctx))
}

func TestInstrumentedStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	store := Instrument(newTestStore(t), "json")

	order := Order{UserID: "u", Status: StatusOpen}
	require.NoError(t, store.Create(ctx, &order))
	_, err := store.Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Close())
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"open":         StatusOpen,
		"Looking Into": StatusLookingInto,
		"in-progress":  StatusInProgress,
		"IN_PROGRESS":  StatusInProgress,
		" On Hold ":    StatusOnHold,
		"Completed":    StatusCompleted,
		"Canceled":     StatusCancelled,
		"cancelled":    StatusCancelled,
	}
	for raw, want := range tests {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := ParseStatus("done")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.Equal(t, "Open / Looking Into / In Progress / On Hold / Completed / Canceled", StatusLabels())
}

func TestOrderIDFormatting(t *testing.T) {
	require.Equal(t, "#0007", FormatOrderID(7))
	require.Equal(t, "#12345", FormatOrderID(12345))

	for _, raw := range []string{"#0007", "#7", "0007", " 7 "} {
		id, err := ParseOrderID(raw)
		require.NoError(t, err, raw)
		require.Equal(t, int64(7), id)
	}
	for _, raw := range []string{"", "#", "abc", "0", "-3"} {
		_, err := ParseOrderID(raw)
		require.Error(t, err, raw)
	}
}

func TestCSVExportImport(t *testing.T) {
	orders := []Order{
		{
			ID:        1,
			Type:      OrderTypeCommission,
			Status:    StatusInProgress,
			CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			UserID:    "42",
			UserName:  "hububba",
			Details:   "Bot, with \"quotes\"\nand newlines",
			Budget:    "100",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, orders))
	require.True(t, strings.HasPrefix(buf.String(), "order_id,type,status,created_at,user_id,user_name,ticket_channel_id,details,budget,deadline,notes\n"))
	require.Contains(t, buf.String(), "#0001,Commission,In Progress,2024-01-02T03:04:05Z,42,hububba")

	parsed, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	require.Equal(t, orders[0].Details, parsed[0].Details)
	require.Equal(t, StatusInProgress, parsed[0].Status)
	require.True(t, orders[0].CreatedAt.Equal(parsed[0].CreatedAt))
}

func TestReadLegacyCSV(t *testing.T) {
	legacy := "order_id,type,status,created_at,user_id,user_name,ticket_channel_id,details,budget,deadline,notes\n" +
		"#0003,Commission,Open,2024-03-01T10:00:00.123456+00:00,1,a,99,logo,,,\n" +
		"#0004,Commission,,,2,b,,site,50,,\n"

	orders, err := ReadCSV(strings.NewReader(legacy))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, int64(3), orders[0].ID)
	require.Equal(t, "99", orders[0].TicketChannelID)
	require.Equal(t, StatusOpen, orders[1].Status)
	require.True(t, orders[1].CreatedAt.IsZero())

	_, err = ReadCSV(strings.NewReader("order_id,status\nseven,Open\n"))
	require.Error(t, err)
}

func TestReadCSVKeepsFreeTextStatusInNotes(t *testing.T) {
	legacy := "order_id,status,notes\n" +
		"#1,Done,\n" +
		"#2,Paid,half up front\n" +
		"#3,completed,\n"

	orders, err := ReadCSV(strings.NewReader(legacy))
	require.NoError(t, err)
	require.Len(t, orders, 3)

	require.Equal(t, StatusOpen, orders[0].Status)
	require.Equal(t, "Legacy status: Done", orders[0].Notes)
	require.Equal(t, StatusOpen, orders[1].Status)
	require.Equal(t, "half up front\nLegacy status: Paid", orders[1].Notes)
	require.Equal(t, StatusCompleted, orders[2].Status)
	require.Empty(t, orders[2].Notes)
}

func TestJSONStoreReadsNumericDiscordIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacy := `[
  {"id": 1, "user_id": 123456789012345678, "ticket_channel_id": 223456789012345678,
   "title": "Logo", "status": "open", "budget": null, "deadline": null, "notes": null},
  {"id": 2, "user_id": "42", "ticket_channel_id": null, "title": "Site", "status": "in_progress"}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ordersFile), []byte(legacy), 0o600))
	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "123456789012345678", all[0].UserID)
	require.Equal(t, "223456789012345678", all[0].TicketChannelID)
	require.Empty(t, all[0].Budget)
	require.Equal(t, "42", all[1].UserID)
	require.Empty(t, all[1].TicketChannelID)

	found, err := store.FindByChannel(ctx, "223456789012345678")
	require.NoError(t, err)
	require.Equal(t, int64(1), found.ID)

	created := Order{UserID: "7", Status: StatusOpen}
	require.NoError(t, store.Create(ctx, &created))
	require.Equal(t, int64(3), created.ID)
	require.Equal(t, "Commission #3", created.Title)

	// Rewritten with string IDs, the file still reads back the same.
	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "123456789012345678", again.UserID)
}

func TestStoresTolerateNullFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ordersFile), []byte("null\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, panelsFile), []byte("null\n"), 0o600))

	orders, err := NewJSONStore(dir)
	require.NoError(t, err)
	all, err := orders.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
	order := Order{UserID: "1", Status: StatusOpen}
	require.NoError(t, orders.Create(ctx, &order))
	require.Equal(t, int64(1), order.ID)

	panels, err := NewPanelStore(dir)
	require.NoError(t, err)
	require.NoError(t, panels.Set("g1", PanelState{ChannelID: "c", MessageID: "m"}))
	state, ok, err := panels.Get("g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "m", state.MessageID)
}

func TestPanelStore(t *testing.T) {
	store, err := NewPanelStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Get("g1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set("g1", PanelState{ChannelID: "c", MessageID: "m1"}))
	require.NoError(t, store.Set("g2", PanelState{ChannelID: "c2", MessageID: "m2"}))

	state, ok, err := store.Get("g1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "m1", state.MessageID)
}
