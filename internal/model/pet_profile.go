package model

import "time"

// PetProfile 对应数据库中的 pet_profiles 表，以图库文件名为主键。
// 存在档案时用真实信息替代随机生成的展示字段。
type PetProfile struct {
	ImageID     string    `gorm:"type:varchar(255);primaryKey" json:"imageId"`
	Breed       string    `gorm:"type:varchar(100)" json:"breed"`
	Age         int       `gorm:"not null;default:0" json:"age"`
	Sex         string    `gorm:"type:varchar(10)" json:"sex"`
	Location    string    `gorm:"type:varchar(100)" json:"location"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (PetProfile) TableName() string {
	return "pet_profiles"
}
