package model

import (
	"time"

	"gorm.io/gorm"
)

// Shop 商铺：点评/优惠券业务里被高频读取的聚合，走缓存查询。
type Shop struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name      string `gorm:"size:128;not null" json:"name"`
	Address   string `gorm:"size:255" json:"address"`
	AvgPrice  int64  `gorm:"not null;default:0" json:"avg_price"` // 人均消费，单位：分
	Score     int    `gorm:"not null;default:0" json:"score"`     // 评分 ×10，如 47 = 4.7 分
	Sold      int64  `gorm:"not null;default:0" json:"sold"`
	OpenHours string `gorm:"size:64" json:"open_hours"`
}

func (Shop) TableName() string { return "shops" }
