// Package models - Definitions for model output class styles and sets.
package models

// ModelFamily is the labelling convention a model was trained with.
type ModelFamily string

const (
	// ModelFamilyMahjong is the 34 class Riichi mahjong tile set (no flowers, no red fives).
	ModelFamilyMahjong ModelFamily = "mahjong"
)
