package emotion

import (
	"context"
	"errors"
	"fmt"
	"log"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// NoFaceMessage is reported when the detector finds no face in the frame.
	NoFaceMessage = "No face detected"
)

// Region locates a detected face in pixels.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Detection is one face found in a frame.
type Detection struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotion         map[string]float64 `json:"emotion,omitempty"`
	Region          *Region            `json:"region,omitempty"`
}

// Detector runs facial emotion classification on raw image bytes.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// Result 是 upload_frame 的响应体。
type Result struct {
	Status  string `json:"status"`
	Emotion string `json:"emotion,omitempty"`
	Message string `json:"message,omitempty"`
}

// Classifier reports the dominant emotion of the first face in a frame.
type Classifier struct {
	detector Detector
}

// NewClassifier wraps detector.
func NewClassifier(detector Detector) (*Classifier, error) {
	if detector == nil {
		return nil, errors.New("emotion detector is required")
	}
	return &Classifier{detector: detector}, nil
}

// Classify hands the whole buffer to the detector. No detections is a normal
// outcome reported through Result; only detector faults return an error.
func (c *Classifier) Classify(ctx context.Context, image []byte) (Result, error) {
	detections, err := c.detector.Detect(ctx, image)
	if err != nil {
		return Result{}, fmt.Errorf("failed to analyze frame: %w", err)
	}

	if len(detections) == 0 {
		log.Printf("[frame] no face detected, bytes=%d", len(image))
		return Result{Status: StatusError, Message: NoFaceMessage}, nil
	}

	first := detections[0]
	log.Printf("[frame] faces=%d dominant=%s", len(detections), first.DominantEmotion)
	return Result{Status: StatusSuccess, Emotion: first.DominantEmotion}, nil
}
