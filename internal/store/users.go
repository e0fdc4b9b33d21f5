// Package store persists user credentials in a flat JSON file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"

	"chatrelay/internal/auth"
)

// ErrDuplicateUsername is returned by Insert when a record with the same
// username (compared case-insensitively) already exists.
var ErrDuplicateUsername = errors.New("a user with this name already exists")

// UserRecord is one entry in the users file. Password holds a bcrypt hash,
// never the plain text.
type UserRecord struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// UserStore reads and writes the JSON credential file. A missing file reads
// as an empty store. All read-modify-write sequences are serialized under one
// mutex and writes go through a temp file and rename, so concurrent logins
// never observe a torn file.
type UserStore struct {
	mu   sync.Mutex
	path string
}

// NewUserStore returns a store backed by the file at path. The file is
// created on the first Insert.
func NewUserStore(path string) *UserStore {
	return &UserStore{path: path}
}

func (s *UserStore) load() ([]UserRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var users []UserRecord
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return users, nil
}

func (s *UserStore) save(users []UserRecord) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode users file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace users file: %w", err)
	}
	return nil
}

// FindByUsername looks up a record by case-insensitive username.
func (s *UserStore) FindByUsername(name string) (*UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, false
	}
	rec, ok := lo.Find(users, func(u UserRecord) bool {
		return strings.EqualFold(u.Username, name)
	})
	if !ok {
		return nil, false
	}
	return &rec, true
}

// Insert hashes the password and appends a new record. It fails with
// ErrDuplicateUsername when the username is already taken.
func (s *UserStore) Insert(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	if lo.SomeBy(users, func(u UserRecord) bool {
		return strings.EqualFold(u.Username, username)
	}) {
		return ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users = append(users, UserRecord{Username: username, Password: string(hash)})
	return s.save(users)
}

// Authenticate is the credential comparator gated by the login throttle. On a
// match it returns the identity with the 1-based position of the record in
// the store file as the user id.
func (s *UserStore) Authenticate(username, password string) (*auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, false
	}
	for i, u := range users {
		if !strings.EqualFold(u.Username, username) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
			return nil, false
		}
		return &auth.Identity{UserID: i + 1, Username: u.Username}, true
	}
	return nil, false
}
