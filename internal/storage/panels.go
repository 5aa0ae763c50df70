package storage

import (
	"os"
	"path/filepath"
	"sync"
)

const panelsFile = "panels.json"

// PanelState remembers where the ticket panel was last posted in a guild.
type PanelState struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

type PanelStore struct {
	mu   sync.Mutex
	path string
}

func NewPanelStore(dir string) (*PanelStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &PanelStore{path: filepath.Join(dir, panelsFile)}, nil
}

func (s *PanelStore) Get(guildID string) (PanelState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	panels, err := s.load()
	if err != nil {
		return PanelState{}, false, err
	}
	state, ok := panels[guildID]
	return state, ok, nil
}

func (s *PanelStore) Set(guildID string, state PanelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	panels, err := s.load()
	if err != nil {
		return err
	}
	panels[guildID] = state
	return writeJSONAtomic(s.path, panels)
}

func (s *PanelStore) load() (map[string]PanelState, error) {
	panels := make(map[string]PanelState)
	if err := readJSON(s.path, &panels); err != nil {
		return nil, err
	}
	// A file holding "null" decodes to a nil map.
	if panels == nil {
		panels = make(map[string]PanelState)
	}
	return panels, nil
}
