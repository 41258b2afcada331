// Package model - Model contract shared by the detection model implementations.
package model

import (
	"image"

	"github.com/nvr-ai/go-mahjong/models/model/preprocess"
	"github.com/nvr-ai/go-mahjong/models/postprocess"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the YOLO model family.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv8 is the name of the YOLOv8 tile detector.
	ModelNameYOLOv8 Name = "yolov8"
)

// BaseModel is the base model for all models.
type BaseModel struct {
	Name       Name   `json:"name" yaml:"name"`
	Family     Family `json:"family" yaml:"family"`
	Path       string `json:"path" yaml:"path"`
	InputSize  int    `json:"input_size" yaml:"input_size"`
	NumClasses int    `json:"num_classes" yaml:"num_classes"`
}

// Model turns photos into network inputs and network outputs into detections.
type Model interface {
	Options() BaseModel
	PreProcess(img image.Image) (*preprocess.Result, error)
	PostProcess(output *postprocess.Output, info preprocess.PaddingInfo) ([]postprocess.Detection, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name       Name                   `json:"name" yaml:"name"`
	Path       string                 `json:"path" yaml:"path"`
	Family     Family                 `json:"family" yaml:"family"`
	NumClasses int                    `json:"num_classes" yaml:"num_classes"`
	Preprocess preprocess.ModelConfig `json:"preprocess" yaml:"preprocess"`
	Options    postprocess.Options    `json:"postprocess" yaml:"postprocess"`
}
