package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var csvHeader = []string{
	"order_id", "type", "status", "created_at", "user_id", "user_name",
	"ticket_channel_id", "details", "budget", "deadline", "notes",
}

// WriteCSV writes orders in the legacy spreadsheet layout.
func WriteCSV(w io.Writer, orders []Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range orders {
		created := ""
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			o.DisplayID(), o.Type, o.Status.Label(), created, o.UserID, o.UserName,
			o.TicketChannelID, o.Details, o.Budget, o.Deadline, o.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the legacy spreadsheet layout. Columns are matched by header
// name; IDs are kept so callers can report the mapping, but stores assign new ones.
// Statuses outside the enum do not fail the file, see the status column below.
func ReadCSV(r io.Reader) ([]Order, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := index["order_id"]; !ok {
		return nil, errors.New("csv: missing order_id column")
	}

	var orders []Order
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		id, err := ParseOrderID(field("order_id"))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		// Older sheets hold free-text statuses ("Done", "Paid"). Those rows
		// import as open and keep the original text in the notes.
		status := StatusOpen
		notes := field("notes")
		if raw := field("status"); raw != "" {
			if parsed, err := ParseStatus(raw); err == nil {
				status = parsed
			} else {
				notes = joinNote(notes, "Legacy status: "+raw)
			}
		}
		var created time.Time
		if raw := field("created_at"); raw != "" {
			if created, err = time.Parse(time.RFC3339Nano, raw); err != nil {
				return nil, fmt.Errorf("csv line %d: created_at: %w", line, err)
			}
		}

		orders = append(orders, Order{
			ID:              id,
			Type:            field("type"),
			Status:          status,
			CreatedAt:       created,
			UserID:          field("user_id"),
			UserName:        field("user_name"),
			TicketChannelID: field("ticket_channel_id"),
			Details:         field("details"),
			Budget:          field("budget"),
			Deadline:        field("deadline"),
			Notes:           notes,
		})
	}
	return orders, nil
}

func joinNote(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
