package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"pet-match-go/internal/gallery"
	"pet-match-go/internal/model"
	"pet-match-go/internal/repository"
	"pet-match-go/pkg/log"
	"sync"
)

// Enricher 为排序后的图库条目补充展示信息。
type Enricher interface {
	Enrich(ctx context.Context, entry gallery.Entry) model.PetDetails
}

var (
	breeds = []string{
		"English Bulldog", "Golden Retriever", "Labrador", "Beagle", "Poodle",
		"German Shepherd", "French Bulldog", "Boxer", "Dachshund", "Corgi",
		"Husky", "Border Collie", "Australian Shepherd", "Shiba Inu", "Pug",
	}
	locations = []string{
		"West Hollywood, CA", "Santa Monica, CA", "Los Angeles, CA",
		"San Francisco, CA", "San Diego, CA", "Portland, OR", "Seattle, WA",
		"Denver, CO", "Austin, TX", "New York, NY", "Chicago, IL", "Miami, FL",
	}
	descriptionTemplates = []string{
		"%s is a lovable companion with a heart as big as their personality! They love belly rubs and long walks.",
		"Meet %s, a playful pup who brings joy to everyone they meet. Great with kids and other pets!",
		"%s is looking for their forever home. They're gentle, loyal, and ready to be your best friend.",
		"This adorable %s has a wonderful temperament and loves cuddles. Perfect for any loving family!",
		"%s is a bundle of energy and affection. They'll keep you active and make every day brighter.",
	}
)

// RandomEnricher 从固定选项中随机生成展示字段，与图片内容无关。
// 三个维度的匹配分统一取 [minScore, maxScore] 内的均匀整数。
type RandomEnricher struct {
	mu       sync.Mutex
	rng      *rand.Rand
	minScore int
	maxScore int
}

// NewRandomEnricher 创建随机展示信息生成器。rng 为 nil 时使用随机种子。
func NewRandomEnricher(rng *rand.Rand, minScore, maxScore int) *RandomEnricher {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomEnricher{rng: rng, minScore: minScore, maxScore: maxScore}
}

// Enrich 生成一组随机展示字段。
func (e *RandomEnricher) Enrich(ctx context.Context, entry gallery.Entry) model.PetDetails {
	e.mu.Lock()
	defer e.mu.Unlock()

	age := e.rng.IntN(10) + 1
	sex := "Female"
	if e.rng.Float64() > 0.5 {
		sex = "Male"
	}
	return model.PetDetails{
		Breed:       breeds[e.rng.IntN(len(breeds))],
		Age:         age,
		AgeText:     ageText(age),
		Sex:         sex,
		Location:    locations[e.rng.IntN(len(locations))],
		Description: fmt.Sprintf(descriptionTemplates[e.rng.IntN(len(descriptionTemplates))], entry.Name),
		MatchScores: e.scores(),
	}
}

func (e *RandomEnricher) scores() model.MatchScores {
	return model.MatchScores{
		Appearance: e.score(),
		Expression: e.score(),
		Character:  e.score(),
	}
}

func (e *RandomEnricher) score() int {
	return e.minScore + e.rng.IntN(e.maxScore-e.minScore+1)
}

func ageText(age int) string {
	if age == 1 {
		return "1 Year"
	}
	return fmt.Sprintf("%d Years", age)
}

// ProfileEnricher 优先使用数据库中的宠物档案，缺失字段与匹配分由随机生成器补齐。
type ProfileEnricher struct {
	repo     repository.PetProfileRepository
	fallback *RandomEnricher
}

// NewProfileEnricher 创建基于宠物档案的展示信息查询。
func NewProfileEnricher(repo repository.PetProfileRepository, fallback *RandomEnricher) *ProfileEnricher {
	return &ProfileEnricher{repo: repo, fallback: fallback}
}

// Enrich 查询档案；查询失败或不存在时退回随机生成。
func (e *ProfileEnricher) Enrich(ctx context.Context, entry gallery.Entry) model.PetDetails {
	profile, err := e.repo.FindByImageID(entry.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			log.Warnf("[ProfileEnricher] 查询宠物档案失败, id: %s, error: %v", entry.ID, err)
		}
		return e.fallback.Enrich(ctx, entry)
	}

	details := e.fallback.Enrich(ctx, entry)
	if profile.Breed != "" {
		details.Breed = profile.Breed
	}
	if profile.Age > 0 {
		details.Age = profile.Age
		details.AgeText = ageText(profile.Age)
	}
	if profile.Sex != "" {
		details.Sex = profile.Sex
	}
	if profile.Location != "" {
		details.Location = profile.Location
	}
	if profile.Description != "" {
		details.Description = profile.Description
	}
	return details
}
