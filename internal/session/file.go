package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// DataFile is the encrypted session document.
	DataFile = "session.enc"

	// KeyFile holds the random key the session document is sealed with.
	KeyFile = "session.key"
)

// ErrCorrupt is returned when the session file cannot be decrypted or decoded.
var ErrCorrupt = errors.New("session file corrupt")

// FileBackend keeps session values in one encrypted file inside dir.
//
// The document is sealed with XChaCha20-Poly1305 under a per-session random
// key stored next to it with mode 0600. Removing the last key deletes both
// files, so the next session starts with a fresh key.
type FileBackend struct {
	mu  sync.Mutex
	dir string
}

// NewFileBackend creates a file backend rooted at dir.
// The directory is created on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// DataPath returns the path of the encrypted session document.
func (f *FileBackend) DataPath() string {
	return filepath.Join(f.dir, DataFile)
}

// KeyPath returns the path of the session key file.
func (f *FileBackend) KeyPath() string {
	return filepath.Join(f.dir, KeyFile)
}

// Load implements Backend.
func (f *FileBackend) Load(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Save implements Backend.
// A corrupt session file is replaced by a fresh document holding only values.
func (f *FileBackend) Save(ctx context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		if err := f.reset(); err != nil {
			return err
		}
		current, err = make(map[string]string), nil
	}
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return f.write(current)
}

// Remove implements Backend.
// A corrupt session file is discarded rather than reported, since removing
// keys is how callers recover from it.
func (f *FileBackend) Remove(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		return f.reset()
	}
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(current, k)
	}
	if len(current) == 0 {
		return f.reset()
	}
	return f.write(current)
}

func (f *FileBackend) read() (map[string]string, error) {
	sealed, err := os.ReadFile(f.DataPath())
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	key, err := os.ReadFile(f.KeyPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: key file missing", ErrCorrupt)
	}
	if err != nil {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: short file", ErrCorrupt)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return values, nil
}

func (f *FileBackend) write(values map[string]string) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	key, err := f.loadOrCreateKey()
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}

	plain, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)

	return writeFileAtomic(f.DataPath(), sealed)
}

func (f *FileBackend) loadOrCreateKey() ([]byte, error) {
	key, err := os.ReadFile(f.KeyPath())
	if err == nil && len(key) == chacha20poly1305.KeySize {
		return key, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	if err := writeFileAtomic(f.KeyPath(), key); err != nil {
		return nil, err
	}
	return key, nil
}

func (f *FileBackend) reset() error {
	for _, p := range []string{f.DataPath(), f.KeyPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and renames
// it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
