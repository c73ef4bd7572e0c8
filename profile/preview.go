package profile

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/types"
)

const previewScheme = "file://"

// PreviewStore holds local copies of images shown while their upload is in
// progress. Every reference handed out must be discarded.
type PreviewStore struct {
	fs     afero.Fs
	dir    string
	logger types.Logger
	active map[string]struct{}
	mu     sync.Mutex
}

func NewPreviewStore(fs afero.Fs, dir string, logger types.Logger) *PreviewStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "sai-feed-previews")
	}

	return &PreviewStore{
		fs:     fs,
		dir:    dir,
		logger: logger,
		active: make(map[string]struct{}),
	}
}

// Create writes file to the preview directory and returns a reference that
// can stand in for the remote URL.
func (p *PreviewStore) Create(file *types.FileUpload) (string, error) {
	if file == nil || len(file.Data) == 0 {
		return "", types.ErrFileIsEmpty
	}

	if err := p.fs.MkdirAll(p.dir, 0o700); err != nil {
		return "", types.WrapError(err, "failed to create preview directory")
	}

	name := uuid.New().String() + strings.ToLower(path.Ext(file.Name))
	target := filepath.Join(p.dir, name)
	if err := afero.WriteFile(p.fs, target, file.Data, 0o600); err != nil {
		return "", types.WrapError(err, "failed to write preview")
	}

	ref := previewScheme + filepath.ToSlash(target)

	p.mu.Lock()
	p.active[ref] = struct{}{}
	p.mu.Unlock()

	return ref, nil
}

func (p *PreviewStore) Discard(ref string) {
	p.mu.Lock()
	_, exists := p.active[ref]
	delete(p.active, ref)
	p.mu.Unlock()

	if !exists {
		return
	}

	target := filepath.FromSlash(strings.TrimPrefix(ref, previewScheme))
	if err := p.fs.Remove(target); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("Failed to remove avatar preview", zap.String("path", target), zap.Error(err))
	}
}

// Active lists references that have not been discarded yet.
func (p *PreviewStore) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	refs := make([]string, 0, len(p.active))
	for ref := range p.active {
		refs = append(refs, ref)
	}
	return refs
}

func (p *PreviewStore) Dir() string {
	return p.dir
}
