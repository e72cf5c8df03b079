package model

type GrievanceEvent struct {
	EventID     uint64 `gorm:"column:event_id;primaryKey;autoIncrement"`
	GrievanceID string `gorm:"column:grievance_id;type:text;not null;index"`
	Action      string `gorm:"column:action;type:text;not null"`
	Actor       string `gorm:"column:actor;type:text;not null;default:''"`
	FromStatus  string `gorm:"column:from_status;type:text;not null;default:''"`
	ToStatus    string `gorm:"column:to_status;type:text;not null"`
	Note        string `gorm:"column:note;type:text;not null;default:''"`
	CreatedAt   string `gorm:"column:created_at;type:text;not null"`
}

func (GrievanceEvent) TableName() string {
	return "grievance_events"
}
