package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// PolicyModel 对应数据库中的 discount_policy 表。
// group 是 MySQL 保留字，列名用 group_name。
type PolicyModel struct {
	gorm.Model
	SellerID      int64  `gorm:"index"`
	Name          string `gorm:"type:varchar(128)"`
	GroupName     string `gorm:"type:varchar(32);index"`
	Type          string `gorm:"type:varchar(16)"`
	TargetKind    string `gorm:"type:varchar(16)"`
	Rate          int
	Amount        int64
	MaxDiscount   int64
	MinOrder      int64
	ValidFrom     time.Time `gorm:"index"`
	ValidTo       time.Time `gorm:"index"`
	UsageLimit    int64
	PlatformRatio int
	Priority      int
	Condition     string `gorm:"type:text"`
	Active        bool   `gorm:"index"`

	// 关联关系
	Targets   []TargetModel         `gorm:"foreignKey:PolicyID"`
	Revisions []PolicyRevisionModel `gorm:"foreignKey:PolicyID"`
}

func (PolicyModel) TableName() string { return "discount_policy" }

// PolicyRevisionModel 对应 discount_policy_history 表：
// 策略每次变更前的快照，只插入，永不更新。
type PolicyRevisionModel struct {
	ID            uint `gorm:"primarykey"`
	PolicyID      int64 `gorm:"index"`
	Name          string
	Rate          int
	Amount        int64
	MaxDiscount   int64
	MinOrder      int64
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    int64
	PlatformRatio int
	Priority      int
	Condition     string `gorm:"type:text"`
	Active        bool
	ChangedAt     time.Time
}

func (PolicyRevisionModel) TableName() string { return "discount_policy_history" }

// TargetModel 对应 discount_target 表。
type TargetModel struct {
	gorm.Model
	PolicyID int64  `gorm:"index"`
	Kind     string `gorm:"type:varchar(16);index:idx_target_ref"`
	RefID    int64  `gorm:"index:idx_target_ref"`
	Active   bool

	Revisions []TargetRevisionModel `gorm:"foreignKey:TargetID"`
}

func (TargetModel) TableName() string { return "discount_target" }

// TargetRevisionModel 对应 discount_target_history 表。
type TargetRevisionModel struct {
	ID        uint  `gorm:"primarykey"`
	TargetID  int64 `gorm:"index"`
	Active    bool
	ChangedAt time.Time
}

func (TargetRevisionModel) TableName() string { return "discount_target_history" }

// UsageModel 对应 discount_usage_history 表：追加型流水。
type UsageModel struct {
	ID        uint   `gorm:"primarykey"`
	PolicyID  int64  `gorm:"index"`
	OrderID   string `gorm:"type:varchar(64);index"`
	UserID    string `gorm:"type:varchar(64)"`
	Amount    int64
	AppliedAt time.Time
}

func (UsageModel) TableName() string { return "discount_usage_history" }
