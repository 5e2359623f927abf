package dto

import "Carhub/internal/pkg/notify"

// PreferenceDTO 通知偏好
type PreferenceDTO struct {
	Muted      bool          `json:"muted"`
	MutedTypes []notify.Type `json:"muted_types" validate:"max=32"`
	QuietHours QuietHoursDTO `json:"quiet_hours"`
}

// QuietHoursDTO 免打扰时段，start/end 为 "HH:MM"
type QuietHoursDTO struct {
	Enabled          bool   `json:"enabled"`
	Start            string `json:"start" validate:"omitempty,datetime=15:04"`
	End              string `json:"end" validate:"omitempty,datetime=15:04"`
	UTCOffsetMinutes int    `json:"utc_offset_minutes" validate:"min=-720,max=840"`
}
