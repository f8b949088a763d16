package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/ruteri/keymaster/interfaces"
)

// FileStore implements a secret store on the local file system.
// Items live at <baseDir>/<itemID>/<account> with both path elements
// URL-escaped. When an age identity is configured, payloads are encrypted
// to its recipient before they reach the disk.
type FileStore struct {
	baseDir     string
	identity    *age.X25519Identity
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file store rooted at baseDir, creating the
// directory with owner-only permissions if needed. identity may be nil for
// plaintext storage.
func NewFileStore(baseDir string, identity *age.X25519Identity, log *slog.Logger) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	uri := fmt.Sprintf("file://%s", baseDir)
	if identity != nil {
		uri += "?sealed=true"
	}

	return &FileStore{
		baseDir:     baseDir,
		identity:    identity,
		log:         log,
		locationURI: uri,
	}, nil
}

// LoadAgeIdentity reads the first X25519 identity from an age identity file
// as written by age-keygen.
func LoadAgeIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open age identity: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse age identity: %w", err)
	}
	for _, identity := range identities {
		if x25519, ok := identity.(*age.X25519Identity); ok {
			return x25519, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity in %s", path)
}

// Get reads and, if sealed, decrypts an item.
func (s *FileStore) Get(ctx context.Context, itemID, account string) ([]byte, error) {
	filePath := s.itemPath(itemID, account)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if s.identity != nil {
		data, err = s.open(data)
		if err != nil {
			return nil, err
		}
	}

	s.log.Debug("Fetched item from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))
	return data, nil
}

// Put atomically replaces an item by writing a temporary file next to it
// and renaming it into place.
func (s *FileStore) Put(ctx context.Context, itemID, account string, data []byte) error {
	filePath := s.itemPath(itemID, account)

	if s.identity != nil {
		sealed, err := s.seal(data)
		if err != nil {
			return err
		}
		data = sealed
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.log.Debug("Stored item in file", slog.String("path", filePath))
	return nil
}

// Delete removes an item and its directory once empty.
func (s *FileStore) Delete(ctx context.Context, itemID, account string) error {
	filePath := s.itemPath(itemID, account)

	err := os.Remove(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return interfaces.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Fails while other accounts remain.
	_ = os.Remove(filepath.Dir(filePath))
	return nil
}

// Available checks if the base directory exists.
func (s *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(s.baseDir)
	if err != nil {
		s.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

// LocationURI returns the URI that identifies this store.
func (s *FileStore) LocationURI() string {
	return s.locationURI
}

func (s *FileStore) itemPath(itemID, account string) string {
	return filepath.Join(s.baseDir, escapePathElement(itemID), escapePathElement(account))
}

// escapePathElement maps a name to a single safe path element.
func escapePathElement(name string) string {
	if name == "" {
		// Never produced by PathEscape.
		return "%"
	}
	escaped := url.PathEscape(name)
	// PathEscape leaves dots alone; "." and ".." must not reach filepath.Join.
	if strings.Trim(escaped, ".") == "" {
		escaped = strings.ReplaceAll(escaped, ".", "%2E")
	}
	return escaped
}

func (s *FileStore) seal(plaintext []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := age.Encrypt(&out, s.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return out.Bytes(), nil
}

func (s *FileStore) open(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}
