// Package models defines the journal record types exchanged between the
// local store, the sync engine and the remote snapshot store.
package models

import "time"

// ReflectionType classifies a journal entry by cadence.
type ReflectionType string

const (
	TypeDaily   ReflectionType = "daily"
	TypeWeekly  ReflectionType = "weekly"
	TypeMonthly ReflectionType = "monthly"
	TypeYearly  ReflectionType = "yearly"
	TypeProject ReflectionType = "project"
)

// Valid reports whether t is one of the known entry types.
func (t ReflectionType) Valid() bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeMonthly, TypeYearly, TypeProject:
		return true
	}
	return false
}

// Reflection is one journal record.
//
// ID is assigned by the local store, is unique and is never reused within a
// store's lifetime. Summary, Tags and Category may be empty until async
// enrichment fills them in. Embedding is opaque to the sync core and is
// excluded from snapshots to keep remote blobs small.
type Reflection struct {
	ID        int64          `json:"id"`
	Content   string         `json:"content"`
	Summary   string         `json:"summary"`
	Tags      []string       `json:"tags"`
	Category  string         `json:"category"`
	Type      ReflectionType `json:"type"`
	Embedding []byte         `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy, so held records survive wholesale store
// overwrites during merges.
func (r *Reflection) Clone() *Reflection {
	c := *r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.Embedding != nil {
		c.Embedding = append([]byte(nil), r.Embedding...)
	}
	return &c
}
