// Package tokenstore provides persistent credential stores.
package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileStore keeps tokens in a YAML file.
// The file is read on every Get so tokens written by another process, such as
// the auth tool, are picked up by a running server.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file need not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("credential file path is required")
	}
	return &FileStore{path: path}, nil
}

// Get returns the token for name.
func (s *FileStore) Get(_ context.Context, name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.read()
	if err != nil {
		zlog.Debug().Err(err).Msgf("tokenstore: failed to read file: path=%s", s.path)
		return "", false
	}
	v, ok := tokens[name]
	return v, ok && v != ""
}

// Set stores a token. An empty value deletes it.
func (s *FileStore) Set(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.read()
	if err != nil {
		return err
	}
	if value == "" {
		delete(tokens, name)
	} else {
		tokens[name] = value
	}
	return s.write(tokens)
}

func (s *FileStore) read() (map[string]string, error) {
	tokens := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return tokens, nil
		}
		return nil, errors.Wrap(err, "failed to read credential file")
	}
	if err := yaml.Unmarshal(data, &tokens); err != nil {
		return nil, errors.Wrap(err, "failed to parse credential file")
	}
	if tokens == nil {
		tokens = make(map[string]string)
	}
	return tokens, nil
}

// write replaces the file through a temporary file in the same directory.
func (s *FileStore) write(tokens map[string]string) error {
	data, err := yaml.Marshal(tokens)
	if err != nil {
		return errors.Wrap(err, "failed to encode credentials")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "failed to create credential directory")
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write credentials")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write credentials")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return errors.Wrap(err, "failed to set credential file mode")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "failed to replace credential file")
	}
	return nil
}
