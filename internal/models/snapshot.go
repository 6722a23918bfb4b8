package models

import "time"

type SnapshotInfo struct {
	ID         int64     `json:"id"`
	Revision   uint64    `json:"revision"`
	Topics     int       `json:"topics"`
	Flashcards int       `json:"flashcards"`
	CreatedAt  time.Time `json:"created_at"`
}
