package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"hububba-utils/internal/monitoring"
	"hububba-utils/internal/storage"

	"go.uber.org/zap"
)

const noteTimeLayout = "2006-01-02 15:04"

// Draft is the input for a new commission order.
type Draft struct {
	UserID          string
	UserName        string
	TicketChannelID string
	Title           string
	Details         string
	Budget          string
	Deadline        string
	Notes           string
}

// Patch carries optional field replacements; nil fields are left unchanged.
type Patch struct {
	Title    *string
	Status   *string
	Budget   *string
	Deadline *string
	Notes    *string
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Status == nil && p.Budget == nil && p.Deadline == nil && p.Notes == nil
}

type Filter struct {
	Status storage.Status
	Limit  int
}

type Service struct {
	store  storage.OrderStore
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store storage.OrderStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

func (s *Service) Create(ctx context.Context, draft Draft) (storage.Order, error) {
	order := storage.Order{
		Type:            storage.OrderTypeCommission,
		UserID:          draft.UserID,
		UserName:        draft.UserName,
		TicketChannelID: draft.TicketChannelID,
		Title:           strings.TrimSpace(draft.Title),
		Details:         draft.Details,
		Status:          storage.StatusOpen,
		Budget:          draft.Budget,
		Deadline:        draft.Deadline,
		Notes:           draft.Notes,
		CreatedAt:       s.now().UTC(),
	}
	// The store fills the default title in the same write that assigns the ID.
	if err := s.store.Create(ctx, &order); err != nil {
		return storage.Order{}, fmt.Errorf("create order: %w", err)
	}

	monitoring.OrdersCreated.Inc()
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("channel_id", order.TicketChannelID),
	)
	return order, nil
}

func (s *Service) Get(ctx context.Context, id int64) (storage.Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) FindByChannel(ctx context.Context, channelID string) (storage.Order, error) {
	return s.store.FindByChannel(ctx, channelID)
}

// List returns orders newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, filter Filter) ([]storage.Order, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]storage.Order, 0, len(all))
	for _, o := range all {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update applies the non-nil fields of patch. An unknown status rejects the
// whole patch.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (storage.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return storage.Order{}, err
	}

	if patch.Status != nil {
		status, err := storage.ParseStatus(*patch.Status)
		if err != nil {
			return storage.Order{}, err
		}
		order.Status = status
	}
	if patch.Title != nil {
		order.Title = *patch.Title
	}
	if patch.Budget != nil {
		order.Budget = *patch.Budget
	}
	if patch.Deadline != nil {
		order.Deadline = *patch.Deadline
	}
	if patch.Notes != nil {
		order.Notes = *patch.Notes
	}

	if err := s.store.Update(ctx, order); err != nil {
		return storage.Order{}, err
	}
	s.logger.Info("order updated", zap.Int64("order_id", id), zap.String("status", string(order.Status)))
	return order, nil
}

// AppendNote sets the status and appends a timestamped line to the notes.
// An empty status keeps the current one.
func (s *Service) AppendNote(ctx context.Context, id int64, rawStatus, note string) (storage.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return storage.Order{}, err
	}

	if strings.TrimSpace(rawStatus) != "" {
		status, err := storage.ParseStatus(rawStatus)
		if err != nil {
			return storage.Order{}, err
		}
		order.Status = status
	}
	order.Notes = appendNote(order.Notes, note, s.now())

	if err := s.store.Update(ctx, order); err != nil {
		return storage.Order{}, err
	}
	s.logger.Info("order note added", zap.Int64("order_id", id), zap.String("status", string(order.Status)))
	return order, nil
}

func appendNote(existing, note string, at time.Time) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	line := fmt.Sprintf("[%s] %s", at.Format(noteTimeLayout), note)
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
