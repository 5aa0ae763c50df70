package monitoring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AppName prefixes every metric exported by the bot.
const AppName = "hububba"

var (
	// TotalDiscordEvents is the total number of gateway events received.
	TotalDiscordEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_total_discord_events", AppName),
			Help: "Total number of events",
		},
		[]string{"event"},
	)

	TotalDiscordGuilds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_total_discord_guilds", AppName),
			Help: "Total number of discord guilds",
		},
	)

	// DiscordCommandDuration is the duration of an interaction handler, labelled by
	// command key and outcome (ok, denied, error).
	DiscordCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: fmt.Sprintf("%s_discord_command_duration", AppName),
			Help: "Duration of the discord command",
		},
		[]string{"command", "outcome"},
	)

	// HttpTotalRequests is the total number of http requests.
	HttpTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_total_requests", AppName),
			Help: "Total number of http requests",
		},
		[]string{"path", "method", "status_code"},
	)

	// HttpRequestDuration is the duration of the http request.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: fmt.Sprintf("%s_http_request_duration", AppName),
			Help: "Duration of the http request",
		},
		[]string{"path", "method", "status_code"},
	)

	// StoreLatency is the duration of order store operations.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: fmt.Sprintf("%s_store_latency", AppName),
			Help: "Duration of order store operations",
		},
		[]string{"driver", "op"},
	)

	// StoreTotalRequests is the total number of order store operations.
	StoreTotalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_store_total_requests", AppName),
			Help: "Total number of order store operations",
		},
		[]string{"driver", "op", "result"},
	)

	TicketsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tickets_opened_total", AppName),
			Help: "Total number of tickets opened",
		},
		[]string{"kind"},
	)

	TicketsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tickets_closed_total", AppName),
			Help: "Total number of tickets archived",
		},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_orders_created_total", AppName),
			Help: "Total number of orders created",
		},
	)

	InvoicesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_invoices_total", AppName),
			Help: "Total number of invoice attempts",
		},
		[]string{"result"},
	)

	// TwitchPolls counts poller iterations by outcome (offline, live, error, disabled).
	TwitchPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_twitch_polls_total", AppName),
			Help: "Total number of Twitch live-status polls",
		},
		[]string{"outcome"},
	)
)
