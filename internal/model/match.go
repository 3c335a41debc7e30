// Package model 定义了接口返回结构与持久化模型。
package model

// MatchScores 是三个维度的匹配分，取值为 [min_score, max_score] 内的整数。
type MatchScores struct {
	Appearance int `json:"appearance"`
	Expression int `json:"expression"`
	Character  int `json:"character"`
}

// PetDetails 是附加在匹配结果上的展示信息。
type PetDetails struct {
	Breed       string      `json:"breed"`
	Age         int         `json:"age"`
	AgeText     string      `json:"ageText"`
	Sex         string      `json:"sex"`
	Location    string      `json:"location"`
	Description string      `json:"description"`
	MatchScores MatchScores `json:"matchScores"`
}

// RankedMatch 是一次匹配请求返回的单条结果，字段与前端约定保持一致。
type RankedMatch struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	PetDetails
}
