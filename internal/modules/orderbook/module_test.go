package orderbook

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"
	"strings"
	"testing"

	"hububba-utils/internal/command/commandtest"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var staff = commandtest.Caller{GuildID: "g1", ChannelID: "c1", UserID: "mod", Username: "mod"}

func newModule(t *testing.T) (*Module, *orders.Service) {
	t.Helper()
	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	svc := orders.NewService(store, zap.NewNop())
	return New(svc, audit.NewLogger(zap.NewNop()), 0x9B59B6), svc
}

func seed(t *testing.T, svc *orders.Service, drafts ...orders.Draft) {
	t.Helper()
	for _, d := range drafts {
		_, err := svc.Create(context.Background(), d)
		require.NoError(t, err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	m, svc := newModule(t)
	ctx := context.Background()
	seed(t, svc, orders.Draft{UserID: "1", Budget: "50"}, orders.Draft{UserID: "2"})
	in := "In Progress"
	_, err := svc.Update(ctx, 2, orders.Patch{Status: &in})
	require.NoError(t, err)

	reply, err := m.List(ctx, staff.Slash("order", commandtest.Sub("list")))
	require.NoError(t, err)
	require.Len(t, reply.Embeds, 1)
	require.Equal(t, "Recent Orders", reply.Embeds[0].Title)
	require.Len(t, reply.Embeds[0].Fields, 2)

	reply, err = m.List(ctx, staff.Slash("order", commandtest.Sub("list", commandtest.String("status", "open"))))
	require.NoError(t, err)
	fields := reply.Embeds[0].Fields
	require.Len(t, fields, 1)
	require.Equal(t, "#0001 • Commission • Open", fields[0].Name)
	require.Contains(t, fields[0].Value, "Budget: 50 • Deadline: N/A")

	reply, err = m.List(ctx, staff.Slash("order", commandtest.Sub("list", commandtest.String("status", "done"))))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(reply.Content, "Unknown status `done`."))
}

func TestListEmpty(t *testing.T) {
	m, _ := newModule(t)

	reply, err := m.List(context.Background(), staff.Slash("order", commandtest.Sub("list")))
	require.NoError(t, err)
	require.Equal(t, "No orders found.", reply.Content)
}

func TestViewOrder(t *testing.T) {
	m, svc := newModule(t)
	seed(t, svc, orders.Draft{UserID: "1", TicketChannelID: "t1", Details: "logo"})

	reply, err := m.View(context.Background(), staff.Slash("order", commandtest.Sub("view", commandtest.String("id", "#1"))))
	require.NoError(t, err)
	require.Equal(t, "#0001 • Commission #1", reply.Embeds[0].Title)
	require.Equal(t, "<#t1>", reply.Embeds[0].Fields[2].Value)

	reply, err = m.View(context.Background(), staff.Slash("order", commandtest.Sub("view", commandtest.String("id", "9"))))
	require.NoError(t, err)
	require.Equal(t, "Order **#0009** not found.", reply.Content)
}

type brokenReads struct{ storage.OrderStore }

func (brokenReads) Get(ctx context.Context, id int64) (storage.Order, error) {
	return storage.Order{}, errors.New("connection reset")
}

func TestViewReportsStoreFailure(t *testing.T) {
	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	m := New(orders.NewService(brokenReads{store}, zap.NewNop()), audit.NewLogger(zap.NewNop()), 0)

	reply, err := m.View(context.Background(), staff.Slash("order", commandtest.Sub("view", commandtest.String("id", "1"))))
	require.ErrorContains(t, err, "connection reset")
	require.Empty(t, reply.Content)
}

func TestEmbedsStayWithinDiscordLimits(t *testing.T) {
	m, svc := newModule(t)
	ctx := context.Background()
	long := strings.Repeat("x", 3000)
	seed(t, svc, orders.Draft{UserID: "1", Title: long, Details: long, Budget: long, Deadline: long, Notes: long})

	reply, err := m.View(ctx, staff.Slash("order", commandtest.Sub("view", commandtest.String("id", "1"))))
	require.NoError(t, err)
	embed := reply.Embeds[0]
	total := utf8.RuneCountInString(embed.Title) + utf8.RuneCountInString(embed.Description)
	require.LessOrEqual(t, utf8.RuneCountInString(embed.Title), 256)
	for _, f := range embed.Fields {
		require.LessOrEqual(t, utf8.RuneCountInString(f.Value), 1024, f.Name)
		total += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	require.LessOrEqual(t, total, 6000)

	reply, err = m.List(ctx, staff.Slash("order", commandtest.Sub("list")))
	require.NoError(t, err)
	for _, f := range reply.Embeds[0].Fields {
		require.LessOrEqual(t, utf8.RuneCountInString(f.Name), 256)
		require.LessOrEqual(t, utf8.RuneCountInString(f.Value), 1024)
	}
}

func TestUpdateModalAndSubmit(t *testing.T) {
	m, svc := newModule(t)
	ctx := context.Background()
	seed(t, svc, orders.Draft{UserID: "1"})

	reply, err := m.UpdateModal(ctx, staff.Slash("order", commandtest.Sub("update", commandtest.String("id", "#0001"))))
	require.NoError(t, err)
	require.Equal(t, "order_update_modal:1", reply.Modal.CustomID)

	reply, err = m.UpdateSubmit(ctx, staff.ModalSubmit("order_update_modal:1", map[string]string{
		"status": "On Hold",
		"notes":  "waiting on assets",
	}))
	require.NoError(t, err)
	require.Equal(t, "Order **#0001** updated.", reply.Content)

	order, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, storage.StatusOnHold, order.Status)
	require.Contains(t, order.Notes, "] waiting on assets")

	reply, err = m.UpdateSubmit(ctx, staff.ModalSubmit("order_update_modal:7", map[string]string{"status": "Open"}))
	require.NoError(t, err)
	require.Equal(t, "Order **#0007** not found.", reply.Content)

	reply, err = m.UpdateSubmit(ctx, staff.ModalSubmit("order_update_modal:1", map[string]string{"status": "paid"}))
	require.NoError(t, err)
	require.Contains(t, reply.Content, "Unknown status `paid`")
}

func TestManageAppliesGivenFields(t *testing.T) {
	m, svc := newModule(t)
	ctx := context.Background()
	seed(t, svc, orders.Draft{UserID: "1", Budget: "10", Deadline: "Friday"})

	reply, err := m.Manage(ctx, staff.Slash("order", commandtest.Sub("manage",
		commandtest.String("id", "1"),
		commandtest.String("title", "Banner"),
		commandtest.String("status", "completed"),
	)))
	require.NoError(t, err)
	require.Equal(t, "Updated order **#0001**.", reply.Content)

	order, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Banner", order.Title)
	require.Equal(t, storage.StatusCompleted, order.Status)
	require.Equal(t, "Friday", order.Deadline)

	reply, err = m.Manage(ctx, staff.Slash("order", commandtest.Sub("manage", commandtest.String("id", "1"))))
	require.NoError(t, err)
	require.Equal(t, "Nothing to change. Pass at least one field.", reply.Content)
}

func TestExportAttachesCSV(t *testing.T) {
	m, svc := newModule(t)
	seed(t, svc, orders.Draft{UserID: "1", Details: "a"}, orders.Draft{UserID: "2", Details: "b"})

	reply, err := m.Export(context.Background(), staff.Slash("order", commandtest.Sub("export")))
	require.NoError(t, err)
	require.Equal(t, "Exported 2 orders.", reply.Content)
	require.Len(t, reply.Files, 1)

	data, err := io.ReadAll(reply.Files[0].Reader)
	require.NoError(t, err)
	parsed, err := storage.ReadCSV(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
}
