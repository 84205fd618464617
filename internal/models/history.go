package models

// HistoryRecord is an immutable row written exactly once when a job
// completes successfully. It is never updated after insertion.
type HistoryRecord struct {
	BaseModel

	FilePath            string  `gorm:"not null" json:"file_path"`
	ProfileName         string  `gorm:"not null" json:"profile_name"`
	OriginalSizeBytes   int64   `json:"original_size_bytes"`
	NewSizeBytes        int64   `json:"new_size_bytes"`
	SavingsBytes         int64   `json:"savings_bytes"`
	EncodingTimeSeconds  float64 `json:"encoding_time_seconds"`
	Codec               string  `json:"codec"`
	Container           string  `json:"container"`
	CompletedAt          Time    `json:"completed_at"`
}

func (HistoryRecord) TableName() string {
	return "history_records"
}

// NewHistoryRecord builds a HistoryRecord from a finalised queue item,
// computing SavingsBytes as original-minus-new (which may be negative, if
// the new encode is larger — this is recorded verbatim, never clamped).
func NewHistoryRecord(filePath, profileName string, originalSize, newSize int64, encodingTime float64, codec, container string) HistoryRecord {
	return HistoryRecord{
		FilePath:            filePath,
		ProfileName:         profileName,
		OriginalSizeBytes:   originalSize,
		NewSizeBytes:        newSize,
		SavingsBytes:        originalSize - newSize,
		EncodingTimeSeconds: encodingTime,
		Codec:               codec,
		Container:            container,
		CompletedAt:          Now(),
	}
}
