// Package orderbook exposes the commission order records to staff through the
// /order command group.
package orderbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hububba-utils/internal/command"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// Discord rejects embeds over these sizes. List entries stay short enough that
// ten of them fit the 6000 character embed total.
const (
	titleLimit      = 256
	fieldLimit      = 1024
	listFieldLimit  = 80
	descriptionSize = 3000
)

const (
	listLimit      = 10
	updateModalKey = "order_update_modal"
	createdLayout  = "2006-01-02 15:04"
)

type Module struct {
	orders *orders.Service
	audit  *audit.Logger
	color  int
}

func New(orderService *orders.Service, auditLogger *audit.Logger, color int) *Module {
	return &Module{orders: orderService, audit: auditLogger, color: color}
}

func (m *Module) Routes() []command.Route {
	return []command.Route{
		{Key: "order list", Level: perms.LevelStaff, Handler: m.List},
		{Key: "order view", Level: perms.LevelStaff, Handler: m.View},
		{Key: "order update", Level: perms.LevelStaff, Handler: m.UpdateModal},
		{Key: updateModalKey, Level: perms.LevelStaff, Handler: m.UpdateSubmit},
		{Key: "order manage", Level: perms.LevelStaff, Handler: m.Manage},
		{Key: "order export", Level: perms.LevelAdmin, Defer: true, Handler: m.Export},
	}
}

func (m *Module) List(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	filter := orders.Filter{Limit: listLimit}
	if raw := in.String("status", ""); raw != "" {
		status, err := storage.ParseStatus(raw)
		if err != nil {
			return unknownStatus(raw), nil
		}
		filter.Status = status
	}

	list, err := m.orders.List(ctx, filter)
	if err != nil {
		return command.Reply{}, fmt.Errorf("list orders: %w", err)
	}
	if len(list) == 0 {
		return command.Text("No orders found."), nil
	}

	embed := &discordgo.MessageEmbed{Title: "Recent Orders", Color: m.color}
	for _, o := range list {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: clip(fmt.Sprintf("%s • %s • %s", o.DisplayID(), clip(o.Type, 40), o.Status.Label()), titleLimit),
			Value: clip(fmt.Sprintf("User: %s • Opened: %s\nBudget: %s • Deadline: %s\nNotes: %s",
				command.Mention(o.UserID), formatCreated(o.CreatedAt),
				orDefault(clip(o.Budget, listFieldLimit), "N/A"), orDefault(clip(o.Deadline, listFieldLimit), "N/A"),
				orDefault(clip(o.Notes, 200), "-")), fieldLimit),
		})
	}
	return command.Embed(embed), nil
}

func (m *Module) View(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	raw := in.String("id", "")
	id, err := storage.ParseOrderID(raw)
	if err != nil {
		return command.Text("Order **%s** not found.", raw), nil
	}
	order, err := m.orders.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return command.Text("Order **%s** not found.", storage.FormatOrderID(id)), nil
	}
	if err != nil {
		return command.Reply{}, fmt.Errorf("view order %d: %w", id, err)
	}

	ticket := "-"
	if order.TicketChannelID != "" {
		ticket = command.ChannelMention(order.TicketChannelID)
	}
	embed := &discordgo.MessageEmbed{
		Title:       clip(fmt.Sprintf("%s • %s", order.DisplayID(), order.Title), titleLimit),
		Description: clip(order.Details, descriptionSize),
		Color:       m.color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: clip(order.Status.Label(), fieldLimit), Inline: true},
			{Name: "Customer", Value: command.Mention(order.UserID), Inline: true},
			{Name: "Ticket", Value: ticket, Inline: true},
			{Name: "Budget", Value: orDefault(clip(order.Budget, 200), "N/A"), Inline: true},
			{Name: "Deadline", Value: orDefault(clip(order.Deadline, 200), "N/A"), Inline: true},
			{Name: "Opened", Value: formatCreated(order.CreatedAt), Inline: true},
			{Name: "Notes", Value: orDefault(clip(order.Notes, fieldLimit), "-")},
		},
	}
	return command.Embed(embed), nil
}

// UpdateModal asks for the new status and an optional note. The order ID rides
// along in the modal's custom ID.
func (m *Module) UpdateModal(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	id, err := storage.ParseOrderID(in.String("id", ""))
	if err != nil {
		return command.Text("Order IDs look like **#0001**."), nil
	}
	return command.Modal(fmt.Sprintf("%s:%d", updateModalKey, id), "Update Order",
		discordgo.TextInput{
			CustomID:    "status",
			Label:       "Status",
			Placeholder: storage.StatusLabels(),
			Style:       discordgo.TextInputShort,
			Required:    true,
			MaxLength:   40,
		},
		discordgo.TextInput{
			CustomID:  "notes",
			Label:     "Notes (optional)",
			Style:     discordgo.TextInputParagraph,
			MaxLength: 1000,
		},
	), nil
}

func (m *Module) UpdateSubmit(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	id, err := storage.ParseOrderID(in.Arg)
	if err != nil {
		return command.Text("Order **%s** not found.", in.Arg), nil
	}
	rawStatus := in.Value("status")
	order, err := m.orders.AppendNote(ctx, id, rawStatus, in.Value("notes"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return command.Text("Order **%s** not found.", storage.FormatOrderID(id)), nil
	case errors.Is(err, storage.ErrInvalidStatus):
		return unknownStatus(rawStatus), nil
	case err != nil:
		return command.Reply{}, fmt.Errorf("update order %d: %w", id, err)
	}

	m.logChange(ctx, in, order)
	return command.Text("Order **%s** updated.", order.DisplayID()), nil
}

func (m *Module) Manage(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	raw := in.String("id", "")
	id, err := storage.ParseOrderID(raw)
	if err != nil {
		return command.Text("Order **%s** not found.", raw), nil
	}
	patch := orders.Patch{
		Title:    in.OptionalString("title"),
		Status:   in.OptionalString("status"),
		Budget:   in.OptionalString("budget"),
		Deadline: in.OptionalString("deadline"),
		Notes:    in.OptionalString("notes"),
	}
	if patch.Empty() {
		return command.Text("Nothing to change. Pass at least one field."), nil
	}

	order, err := m.orders.Update(ctx, id, patch)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return command.Text("Order **%s** not found.", storage.FormatOrderID(id)), nil
	case errors.Is(err, storage.ErrInvalidStatus):
		return unknownStatus(*patch.Status), nil
	case err != nil:
		return command.Reply{}, fmt.Errorf("manage order %d: %w", id, err)
	}

	m.logChange(ctx, in, order)
	return command.Text("Updated order **%s**.", order.DisplayID()), nil
}

// Export attaches every order as a CSV in the legacy spreadsheet layout.
func (m *Module) Export(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	list, err := m.orders.List(ctx, orders.Filter{})
	if err != nil {
		return command.Reply{}, fmt.Errorf("list orders: %w", err)
	}
	if len(list) == 0 {
		return command.Text("No orders to export."), nil
	}
	var buf bytes.Buffer
	if err := storage.WriteCSV(&buf, list); err != nil {
		return command.Reply{}, fmt.Errorf("write csv: %w", err)
	}
	return command.Reply{
		Content: fmt.Sprintf("Exported %d orders.", len(list)),
		Files: []*discordgo.File{{
			Name:        "orders.csv",
			ContentType: "text/csv",
			Reader:      &buf,
		}},
	}, nil
}

func (m *Module) logChange(ctx context.Context, in *command.Invocation, order storage.Order) {
	m.audit.Tickets(ctx, in.GuildID, in.UserID(), "order_updated",
		fmt.Sprintf("📝 Order **%s** updated by %s → %s", order.DisplayID(), command.Mention(in.UserID()), order.Status.Label()))
}

func unknownStatus(raw string) command.Reply {
	return command.Text("Unknown status `%s`. Use one of: %s", raw, storage.StatusLabels())
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(createdLayout)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
