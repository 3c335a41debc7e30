// Package repository 提供了数据访问层的实现。
package repository

import (
	"errors"
	"pet-match-go/internal/model"

	"gorm.io/gorm"
)

// ErrProfileNotFound 表示图库条目没有对应的宠物档案。
var ErrProfileNotFound = errors.New("宠物档案不存在")

// PetProfileRepository 定义了对 pet_profiles 表的数据操作接口。
type PetProfileRepository interface {
	FindByImageID(imageID string) (*model.PetProfile, error)
}

type petProfileRepository struct {
	db *gorm.DB
}

// NewPetProfileRepository 创建一个新的 PetProfileRepository 实例。
func NewPetProfileRepository(db *gorm.DB) PetProfileRepository {
	return &petProfileRepository{db: db}
}

// FindByImageID 根据图库文件名查找宠物档案。
func (r *petProfileRepository) FindByImageID(imageID string) (*model.PetProfile, error) {
	var profile model.PetProfile
	err := r.db.Where("image_id = ?", imageID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
