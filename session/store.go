package session

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (t Tokens) IsEmpty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

type TokenStore interface {
	Load() (Tokens, error)
	Save(tokens Tokens) error
	Clear() error
}

func NewTokenStore(config *types.SessionConfig, fs afero.Fs) (TokenStore, error) {
	if config == nil {
		return NewMemoryTokenStore(), nil
	}

	switch config.Store {
	case "", "memory":
		return NewMemoryTokenStore(), nil
	case "file":
		return NewFileTokenStore(fs, config.Path, WithSecret(config.Secret)), nil
	default:
		return nil, types.Errorf(types.ErrInvalidParameter, "unknown session store: %s", config.Store)
	}
}

type MemoryTokenStore struct {
	tokens Tokens
	mu     sync.RWMutex
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load() (Tokens, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens, nil
}

func (m *MemoryTokenStore) Save(tokens Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = Tokens{}
	return nil
}

// FileTokenStore keeps the tokens as a JSON document readable only by the
// owner. With a secret the document is encrypted.
type FileTokenStore struct {
	fs     afero.Fs
	path   string
	sealer *sealer
	mu     sync.Mutex
}

type FileOption func(*FileTokenStore)

func WithSecret(secret string) FileOption {
	return func(f *FileTokenStore) {
		f.sealer = newSealer(secret)
	}
}

func NewFileTokenStore(fs afero.Fs, path string, opts ...FileOption) *FileTokenStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	f := &FileTokenStore{fs: fs, path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FileTokenStore) Load() (Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tokens{}, nil
		}
		return Tokens{}, types.WrapError(err, "failed to read session file")
	}

	if f.sealer != nil {
		if data, err = f.sealer.open(data); err != nil {
			return Tokens{}, err
		}
	}

	var tokens Tokens
	if err := utils.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, types.WrapError(err, "failed to decode session file")
	}
	return tokens, nil
}

func (f *FileTokenStore) Save(tokens Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := utils.Marshal(tokens)
	if err != nil {
		return types.WrapError(err, "failed to encode session")
	}

	if f.sealer != nil {
		if data, err = f.sealer.seal(data); err != nil {
			return err
		}
	}

	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return types.WrapError(err, "failed to create session dir")
	}

	if err := afero.WriteFile(f.fs, f.path, data, 0o600); err != nil {
		return types.WrapError(err, "failed to write session file")
	}
	return nil
}

func (f *FileTokenStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return types.WrapError(err, "failed to remove session file")
	}
	return nil
}
