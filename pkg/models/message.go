package models

import "time"

// Exchange is one completed question and answer of a session
type Exchange struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}
