package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hububba-utils/internal/command"
	"hububba-utils/internal/modules/audit"
	"hububba-utils/internal/monitoring"
	"hububba-utils/internal/orders"
	"hububba-utils/internal/paypal"
	"hububba-utils/internal/perms"
	"hububba-utils/internal/storage"

	"go.uber.org/zap"
)

// Sender creates and emails an invoice. *paypal.Client implements it.
type Sender interface {
	CreateAndSend(ctx context.Context, req paypal.InvoiceRequest) (string, error)
}

type Module struct {
	sender   Sender
	orders   *orders.Service
	currency string
	audit    *audit.Logger
	logger   *zap.Logger
}

// New accepts a nil sender when PayPal credentials are not configured.
func New(sender Sender, orderService *orders.Service, currency string, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	if currency == "" {
		currency = "USD"
	}
	return &Module{sender: sender, orders: orderService, currency: currency, audit: auditLogger, logger: logger}
}

func (m *Module) Routes() []command.Route {
	return []command.Route{
		{Key: "invoice create", Level: perms.LevelAdmin, Defer: true, Handler: m.Create},
	}
}

func (m *Module) Create(ctx context.Context, in *command.Invocation) (command.Reply, error) {
	if m.sender == nil {
		return command.Text("PayPal is not configured."), nil
	}
	amount, ok := in.Float("amount")
	if !ok || amount <= 0 {
		return command.Text("Amount must be greater than zero."), nil
	}
	memo := in.String("description", "")
	currency := strings.ToUpper(in.String("currency", m.currency))

	var orderID int64
	if raw := in.String("order", ""); raw != "" {
		id, err := storage.ParseOrderID(raw)
		if err != nil {
			return command.Text("Order IDs look like **#0001**."), nil
		}
		orderID = id
	}

	invoiceID, err := m.sender.CreateAndSend(ctx, paypal.InvoiceRequest{
		Amount:     amount,
		Currency:   currency,
		PayerEmail: in.String("payer_email", ""),
		Memo:       memo,
	})
	if err != nil {
		monitoring.InvoicesSent.WithLabelValues("error").Inc()
		m.logger.Warn("invoice failed", zap.String("invoice_id", invoiceID), zap.Error(err))
		if invoiceID != "" {
			return command.Text("Invoice **%s** was created but sending failed: %v", invoiceID, err), nil
		}
		return command.Text("Failed to create/send invoice: %v", err), nil
	}
	monitoring.InvoicesSent.WithLabelValues("ok").Inc()

	m.audit.Bot(ctx, audit.LevelInfo, in.GuildID, "invoice_sent",
		fmt.Sprintf("🧾 **Invoice** `%s` for %.2f %s sent by %s", invoiceID, amount, currency, command.Mention(in.UserID())))

	reply := command.Text("✅ Invoice **%s** created and sent.", invoiceID)
	if orderID != 0 {
		note := fmt.Sprintf("Invoice %s sent: %.2f %s", invoiceID, amount, currency)
		_, err := m.orders.AppendNote(ctx, orderID, "", note)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			reply.Content += fmt.Sprintf("\nOrder **%s** not found; no note added.", storage.FormatOrderID(orderID))
		case err != nil:
			m.logger.Warn("invoice note failed", zap.Int64("order_id", orderID), zap.Error(err))
			reply.Content += "\nCould not add the invoice to the order notes."
		}
	}
	return reply, nil
}
