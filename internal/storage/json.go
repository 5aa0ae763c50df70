package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const ordersFile = "orders.json"

// JSONStore keeps every order in a single JSON array file. Writes go through a
// mutex and an atomic rename, so concurrent handlers cannot lose updates.
type JSONStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewJSONStore(dir string) (*JSONStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &JSONStore{path: filepath.Join(dir, ordersFile), now: time.Now}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := writeJSONAtomic(s.path, []Order{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) load() ([]Order, error) {
	var orders []Order
	if err := readJSON(s.path, &orders); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

func (s *JSONStore) save(orders []Order) error {
	if orders == nil {
		orders = []Order{}
	}
	return writeJSONAtomic(s.path, orders)
}

func (s *JSONStore) Create(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return err
	}

	var maxID int64
	for _, o := range orders {
		if o.ID > maxID {
			maxID = o.ID
		}
	}
	order.ID = maxID + 1
	order.fillTitle()
	now := s.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	return s.save(append(orders, *order))
}

func (s *JSONStore) Get(ctx context.Context, id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return Order{}, err
	}
	for _, o := range orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (s *JSONStore) List(ctx context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) Update(ctx context.Context, order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return err
	}
	for i := range orders {
		if orders[i].ID == order.ID {
			order.UpdatedAt = s.now().UTC()
			orders[i] = order
			return s.save(orders)
		}
	}
	return ErrNotFound
}

// FindByChannel returns the newest order bound to channelID.
func (s *JSONStore) FindByChannel(ctx context.Context, channelID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return Order{}, err
	}
	for i := len(orders) - 1; i >= 0; i-- {
		if channelID != "" && orders[i].TicketChannelID == channelID {
			return orders[i], nil
		}
	}
	return Order{}, ErrNotFound
}

func (s *JSONStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *JSONStore) Close() error {
	return nil
}
