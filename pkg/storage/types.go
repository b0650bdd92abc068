package storage

import "time"

// Entry is a single imported spreadsheet row.
type Entry struct {
	ID     int64  `json:"id,omitempty"`
	B1     string `json:"B1"`
	B2     string `json:"B2"`
	B3     string `json:"B3"`
	Detail string `json:"detail"`
}

// Level names one tier of the B1 -> B2 -> B3 -> detail hierarchy.
type Level int

const (
	LevelB1 Level = iota + 1
	LevelB2
	LevelB3
	LevelDetail
)

func (l Level) String() string {
	switch l {
	case LevelB1:
		return "B1"
	case LevelB2:
		return "B2"
	case LevelB3:
		return "B3"
	case LevelDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// column is the entries column holding values of this level.
func (l Level) column() string {
	switch l {
	case LevelB1:
		return "b1"
	case LevelB2:
		return "b2"
	case LevelB3:
		return "b3"
	case LevelDetail:
		return "detail"
	}
	return ""
}

// Scope is the override variant stored in the overrides table.
type Scope string

const (
	ScopeB2     Scope = "B2"
	ScopeB3     Scope = "B3"
	ScopeDetail Scope = "B3_DETAIL"
)

// PathFilter selects the values of one level under a fixed parent path.
//
//	{Level: LevelB1}
//	{Level: LevelB2, B1}
//	{Level: LevelB3, B1, B2}
//	{Level: LevelDetail, B1, B2, B3}
//
// Components below the level are ignored.
type PathFilter struct {
	Level Level
	B1    string
	B2    string
	B3    string
}

// ValueCount is one group of a GroupCount query.
type ValueCount struct {
	Value string
	Count int
}

// Override is an operator-pinned percentage for one value under one path.
type Override struct {
	Scope      Scope
	B1         string
	B2         string
	B3         string
	Value      string
	Percentage float64
	UpdatedAt  time.Time
}

// Brand is a named catalog item carrying a percentage.
type Brand struct {
	ID         string  `json:"_id"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// BrandUpdate carries the fields to change; nil fields are left alone.
type BrandUpdate struct {
	Name       *string
	Percentage *float64
}

// User is an account allowed to log in.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
}

// Session binds an opaque token to a user until ExpiresAt.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// Counts summarises table sizes for the db stats command.
type Counts struct {
	Entries   int
	Overrides int
	Brands    int
}
