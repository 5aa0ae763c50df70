package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusOpen        Status = "open"
	StatusLookingInto Status = "looking_into"
	StatusInProgress  Status = "in_progress"
	StatusOnHold      Status = "on_hold"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Statuses lists every order status in workflow order.
var Statuses = []Status{
	StatusOpen,
	StatusLookingInto,
	StatusInProgress,
	StatusOnHold,
	StatusCompleted,
	StatusCancelled,
}

var ErrInvalidStatus = errors.New("invalid order status")

var statusLabels = map[Status]string{
	StatusOpen:        "Open",
	StatusLookingInto: "Looking Into",
	StatusInProgress:  "In Progress",
	StatusOnHold:      "On Hold",
	StatusCompleted:   "Completed",
	StatusCancelled:   "Canceled",
}

// ParseStatus accepts both the stored form ("in_progress") and the display
// form ("In Progress"), case-insensitively.
func ParseStatus(raw string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if key == "canceled" {
		key = string(StatusCancelled)
	}
	status := Status(key)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// StatusLabels is the "Open / Looking Into / ..." hint shown to staff.
func StatusLabels() string {
	labels := make([]string, 0, len(Statuses))
	for _, s := range Statuses {
		labels = append(labels, s.Label())
	}
	return strings.Join(labels, " / ")
}

const OrderTypeCommission = "Commission"

type Order struct {
	ID              int64     `json:"id" bson:"id"`
	Type            string    `json:"type" bson:"type"`
	UserID          string    `json:"user_id" bson:"user_id"`
	UserName        string    `json:"user_name,omitempty" bson:"user_name"`
	TicketChannelID string    `json:"ticket_channel_id,omitempty" bson:"ticket_channel_id"`
	Title           string    `json:"title" bson:"title"`
	Details         string    `json:"details,omitempty" bson:"details"`
	Status          Status    `json:"status" bson:"status"`
	Budget          string    `json:"budget,omitempty" bson:"budget"`
	Deadline        string    `json:"deadline,omitempty" bson:"deadline"`
	Notes           string    `json:"notes,omitempty" bson:"notes"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// UnmarshalJSON accepts Discord IDs stored as JSON numbers, which is how older
// orders.json files recorded user_id and ticket_channel_id.
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	aux := struct {
		*plain
		UserID          snowflake `json:"user_id"`
		TicketChannelID snowflake `json:"ticket_channel_id"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.UserID = string(aux.UserID)
	o.TicketChannelID = string(aux.TicketChannelID)
	return nil
}

type snowflake string

func (s *snowflake) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = snowflake(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("discord id: %w", err)
	}
	*s = snowflake(n.String())
	return nil
}

// DefaultTitle is the title an order gets when none was given.
func DefaultTitle(id int64) string {
	return fmt.Sprintf("Commission #%d", id)
}

// fillTitle runs once the ID is known, before the order is first written.
func (o *Order) fillTitle() {
	if strings.TrimSpace(o.Title) == "" {
		o.Title = DefaultTitle(o.ID)
	}
}

// DisplayID renders the order number the way staff refer to it, e.g. #0007.
func (o Order) DisplayID() string {
	return FormatOrderID(o.ID)
}

func FormatOrderID(id int64) string {
	return fmt.Sprintf("#%04d", id)
}

// ParseOrderID accepts "#0007", "#7", "0007" and "7".
func ParseOrderID(raw string) (int64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", raw)
	}
	return id, nil
}
