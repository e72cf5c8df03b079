package model

// Grievance rows are ordered by (created_at, seq); created_at uses a fixed-width layout so text order is time order.
type Grievance struct {
	Seq           uint64 `gorm:"column:seq;primaryKey;autoIncrement"`
	GrievanceID   string `gorm:"column:grievance_id;type:text;not null;uniqueIndex"`
	CitizenName   string `gorm:"column:citizen_name;type:text;not null"`
	Area          string `gorm:"column:area;type:text;not null;index"`
	Description   string `gorm:"column:description;type:text;not null"`
	ImageURL      string `gorm:"column:image_url;type:text;not null;default:''"`
	AudioURL      string `gorm:"column:audio_url;type:text;not null;default:''"`
	Category      string `gorm:"column:category;type:text;not null"`
	Priority      string `gorm:"column:priority;type:text;not null"`
	Sentiment     string `gorm:"column:sentiment;type:text;not null"`
	EstimatedTime string `gorm:"column:estimated_time;type:text;not null"`
	Status        string `gorm:"column:status;type:text;not null;index"`
	AdminReply    string `gorm:"column:admin_reply;type:text;not null;default:''"`
	CreatedAt     string `gorm:"column:created_at;type:text;not null;index"`
	UpdatedAt     string `gorm:"column:updated_at;type:text;not null"`
}

func (Grievance) TableName() string {
	return "grievances"
}
