package models

import "time"

// Snapshot is a total, self-consistent export of the local record set at one
// moment. It is the unit exchanged with the remote snapshot store; the JSON
// shape matches the remote backup blobs.
type Snapshot struct {
	ExportedAt  time.Time    `json:"export_time"`
	TotalCount  int          `json:"total_count"`
	Reflections []Reflection `json:"reflections"`
}

// IDs returns the set of record identifiers present in the snapshot.
func (s *Snapshot) IDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(s.Reflections))
	for i := range s.Reflections {
		ids[s.Reflections[i].ID] = struct{}{}
	}
	return ids
}

// DeletionBackup captures a record at the moment it was deleted locally.
// One backup blob is written to the remote per deleted record.
type DeletionBackup struct {
	DeletedAt time.Time  `json:"deleted_at"`
	Record    Reflection `json:"record"`
}
