package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecordID addresses a record within a partition. String and integer
// identifiers are separate keys: 5 and "5" name different records.
type RecordID struct {
	Key     string `gorm:"primaryKey;size:255"`
	Numeric bool   `gorm:"primaryKey;not null"`
}

// StringID returns a string identifier.
func StringID(s string) RecordID {
	return RecordID{Key: s}
}

// IntID returns an integer identifier.
func IntID(n int64) RecordID {
	return RecordID{Key: strconv.FormatInt(n, 10), Numeric: true}
}

// Int returns the identifier as an integer, if it is one.
func (id RecordID) Int() (int64, bool) {
	if !id.Numeric {
		return 0, false
	}
	n, err := strconv.ParseInt(id.Key, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsZero reports whether the identifier is empty.
func (id RecordID) IsZero() bool {
	return strings.TrimSpace(id.Key) == ""
}

// String implements fmt.Stringer. String identifiers that look like
// integers are quoted so the two kinds stay distinguishable.
func (id RecordID) String() string {
	if !id.Numeric {
		if _, err := strconv.ParseInt(id.Key, 10, 64); err == nil {
			return strconv.Quote(id.Key)
		}
	}
	return id.Key
}

// MarshalJSON writes integers as numbers and everything else as strings.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if id.Numeric {
		return []byte(id.Key), nil
	}
	return json.Marshal(id.Key)
}

// UnmarshalJSON accepts a JSON string or integer.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = StringID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id must be a string or integer, got %s", data)
	}
	*id = IntID(n)
	return nil
}

// Record is one stored value in a partition. Data is opaque JSON.
type Record struct {
	Partition string    `gorm:"column:partition_name;primaryKey;size:64" json:"partition"`
	ID        RecordID  `gorm:"embedded;embeddedPrefix:id_" json:"id"`
	Data      JSON      `gorm:"type:text;not null" json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Record) TableName() string {
	return "records"
}

// Decode unmarshals the record data into v.
func (r *Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Partition is the provisioned schema row for one named store.
type Partition struct {
	Name          string    `gorm:"primaryKey;size:64" json:"name"`
	KeyPath       string    `gorm:"size:64;default:id" json:"key_path"`
	AutoIncrement bool      `gorm:"default:false" json:"auto_increment"`
	Indexes       string    `gorm:"size:255" json:"indexes"` // comma-delimited field names
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Partition) TableName() string {
	return "partitions"
}

// Partition names provisioned by the schema.
const (
	PartitionStudentData = "studentData"
	PartitionTeacherData = "teacherData"
	PartitionClasses     = "classes"
	PartitionAssignments = "assignments"
	PartitionQuizzes     = "quizzes"
	PartitionDownloads   = "downloads"
	PartitionSyncQueue   = "syncQueue"
)

// Download describes a file the user explicitly saved for offline use.
// Stored in the downloads partition and looked up by filename.
type Download struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CacheName   string    `json:"cacheName"`
	SavedAt     time.Time `json:"savedAt"`
}
