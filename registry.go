package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// blobStore holds the serialized registry.
type blobStore interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// fileStore replaces the whole file on every write via a temp file and a
// rename, so a crash mid-write leaves the previous content intact.
type fileStore struct {
	path string
}

func (s fileStore) Read() ([]byte, error) {
	return os.ReadFile(s.path)
}

func (s fileStore) Write(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Registry is the persisted set of users seen at least once. Register is
// serialised so concurrent first-time users never lose an increment.
type Registry struct {
	mu    sync.Mutex
	store blobStore
}

func NewRegistry(path string) *Registry {
	return &Registry{store: fileStore{path: path}}
}

// Load never fails: a missing or unreadable file is an empty set.
func (r *Registry) Load() map[int64]struct{} {
	users := make(map[int64]struct{})
	data, err := r.store.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("failed to read the user registry, starting empty")
		}
		return users
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Warn().Err(err).Msg("user registry is corrupt, starting empty")
		return users
	}
	for _, id := range ids {
		users[id] = struct{}{}
	}
	return users
}

// Save overwrites the registry with the full set.
func (r *Registry) Save(users map[int64]struct{}) error {
	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := r.store.Write(data); err != nil {
		return fmt.Errorf("failed to write the user registry: %w", err)
	}
	return nil
}

// Register adds userID if it is new and reports whether it was added along
// with the resulting total. A failed write is logged; the user still counts
// as added for this process.
func (r *Registry) Register(userID int64) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.Load()
	if _, ok := users[userID]; ok {
		registeredUsers.Set(float64(len(users)))
		return false, len(users)
	}
	users[userID] = struct{}{}
	if err := r.Save(users); err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("failed to persist the new user")
	}
	registeredUsers.Set(float64(len(users)))
	return true, len(users)
}
