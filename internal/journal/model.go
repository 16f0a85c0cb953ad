package journal

import (
	"time"

	"gorm.io/datatypes"
)

// Session is one adapter process lifetime.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	StartedAt time.Time `json:"startedAt"`
	Hostname  string    `json:"hostname" gorm:"size:255"`
	Version   string    `json:"version" gorm:"size:64"`
}

func (*Session) TableName() string {
	return "sessions"
}

// StatusEntry records a status transition.
type StatusEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string    `json:"sessionId" gorm:"index;size:36"`
	Time      time.Time `json:"time" gorm:"index"`
	Code      int       `json:"code"`
	Detail    string    `json:"detail" gorm:"size:32"`
}

func (*StatusEntry) TableName() string {
	return "status_entries"
}

// Device is one enumerated device as stored in EnumerationEntry.Devices.
type Device struct {
	Slot   uint32 `json:"slot"`
	Class  string `json:"class"`
	Serial string `json:"serial"`
	Name   string `json:"name"`
}

// EnumerationEntry records the device list produced by one enumeration.
type EnumerationEntry struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string         `json:"sessionId" gorm:"index;size:36"`
	Time      time.Time      `json:"time" gorm:"index"`
	Count     int            `json:"count"`
	Devices   datatypes.JSON `json:"devices"`
}

func (*EnumerationEntry) TableName() string {
	return "enumeration_entries"
}

// Models lists every journal table.
var Models = []any{
	&Session{},
	&StatusEntry{},
	&EnumerationEntry{},
}
