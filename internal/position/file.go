package position

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"YieldFlow/internal/model"
)

// fileState is the on-disk layout of a FileStore.
type fileState struct {
	Positions map[string]model.StakePosition `json:"positions"`
	UpdatedAt time.Time                      `json:"updated_at"`
}

// FileStore keeps every position in one JSON file, rewritten atomically on
// each update. Suited to small deployments and local runs.
type FileStore struct {
	mu       sync.Mutex
	state    *fileState
	filePath string
}

// NewFileStore loads the file at filePath, starting empty if it is missing.
func NewFileStore(filePath string) (*FileStore, error) {
	state, err := loadState(filePath)
	if err != nil {
		return nil, err
	}
	return &FileStore{state: state, filePath: filePath}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Get(owner solana.PublicKey) (model.StakePosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.state.Positions[owner.String()]
	if !ok {
		return model.StakePosition{}, notFound(owner)
	}
	return pos, nil
}

func (s *FileStore) Update(owner solana.PublicKey, createIfMissing bool, fn MutateFunc) (model.StakePosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := owner.String()
	pos, ok := s.state.Positions[key]
	if !ok {
		if !createIfMissing {
			return model.StakePosition{}, notFound(owner)
		}
		pos = model.StakePosition{Owner: owner}
	}
	if err := fn(&pos, !ok); err != nil {
		return model.StakePosition{}, err
	}

	prev, hadPrev := s.state.Positions[key]
	s.state.Positions[key] = pos
	if err := s.save(); err != nil {
		if hadPrev {
			s.state.Positions[key] = prev
		} else {
			delete(s.state.Positions, key)
		}
		return model.StakePosition{}, err
	}
	return pos, nil
}

// List returns positions ordered by owner.
func (s *FileStore) List() ([]model.StakePosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.state.Positions))
	for k := range s.state.Positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.StakePosition, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.state.Positions[k])
	}
	return out, nil
}

func (s *FileStore) save() error {
	s.state.UpdatedAt = time.Now().UTC()
	return saveState(s.filePath, s.state)
}

// loadState reads the JSON file. Returns an empty state if the file doesn't exist.
func loadState(filePath string) (*fileState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileState{Positions: map[string]model.StakePosition{}}, nil
		}
		return nil, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Positions == nil {
		state.Positions = map[string]model.StakePosition{}
	}
	return &state, nil
}

// saveState writes through a temp file and rename so a crash never leaves a
// half-written file behind.
func saveState(filePath string, state *fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}
