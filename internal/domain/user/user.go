package user

import (
	"errors"
	"time"
	"unicode/utf8"
)

const maxNicknameLength = 15

var (
	ErrNotFound        = errors.New("user: not found")
	ErrNameRequired    = errors.New("user: name is required")
	ErrNicknameTooLong = errors.New("user: nickname exceeds 15 characters")
	ErrConflict        = errors.New("user: already exists")
)

type User struct {
	ID        string
	Name      string
	Nickname  string
	CreatedAt time.Time
}

func New(id, name, nickname string) (*User, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLength {
		return nil, ErrNicknameTooLong
	}
	return &User{
		ID:        id,
		Name:      name,
		Nickname:  nickname,
		CreatedAt: time.Now().UTC(),
	}, nil
}
