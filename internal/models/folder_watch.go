package models

import "time"

// FolderWatch is a path the Folder Watcher polls incrementally. Each watch
// owns an in-memory known_files set kept by the watcher daemon, not
// persisted here (persisting it would make the seeding-pass contract
// impossible to reason about after a restart).
type FolderWatch struct {
	BaseModel

	Path       string `gorm:"uniqueIndex;not null" json:"path"`
	ProfileID  ULID   `gorm:"type:varchar(26);not null" json:"profile_id"`
	Enabled    bool   `gorm:"not null;default:true" json:"enabled"`
	Recursive  bool   `gorm:"not null;default:true" json:"recursive"`
	AutoQueue  bool   `gorm:"not null;default:true" json:"auto_queue"`
	Extensions string `gorm:"not null" json:"extensions"` // CSV, e.g. "mkv,mp4,avi"

	LastCheck *time.Time `json:"last_check,omitempty"`
}

func (FolderWatch) TableName() string {
	return "folder_watches"
}

func (w *FolderWatch) Validate() error {
	if w.Path == "" {
		return ErrRootPathRequired
	}
	if w.ProfileID.IsZero() {
		return ErrProfileIDRequired
	}
	return nil
}

// ExtensionSet parses the CSV Extensions field into a lowercase lookup set.
func (w *FolderWatch) ExtensionSet() map[string]bool {
	set := map[string]bool{}
	cur := make([]byte, 0, 8)
	flush := func() {
		if len(cur) > 0 {
			set[string(cur)] = true
			cur = cur[:0]
		}
	}
	for i := 0; i < len(w.Extensions); i++ {
		c := w.Extensions[i]
		if c == ',' {
			flush()
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		cur = append(cur, c)
	}
	flush()
	return set
}
