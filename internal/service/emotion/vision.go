package emotion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/emotalk/backend/internal/analysis/emotion"
)

// VisionDetector asks a multimodal chat model to find faces and their expressions.
type VisionDetector struct {
	chatModel model.BaseChatModel
}

var _ Detector = (*VisionDetector)(nil)

// NewVisionDetector 使用多模态大模型作为人脸情绪识别后端。
func NewVisionDetector(chatModel model.BaseChatModel) (*VisionDetector, error) {
	if chatModel == nil {
		return nil, errors.New("vision chat model is required")
	}
	return &VisionDetector{chatModel: chatModel}, nil
}

// Detect sends the frame as a data URL and parses the JSON face list from the reply.
func (d *VisionDetector) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	if len(image) == 0 {
		return nil, nil
	}

	messages := []*schema.Message{
		schema.SystemMessage(visionSystemPrompt()),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: visionUserPrompt},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:    dataURL(image),
						Detail: schema.ImageURLDetailLow,
					},
				},
			},
		},
	}

	msg, err := d.chatModel.Generate(ctx, messages, model.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("vision model invoke failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, errors.New("vision model returned empty output")
	}

	faces, err := parseDetectorOutput(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("vision model output parse failed: %w", err)
	}
	return faces, nil
}

func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// parseDetectorOutput accepts either a bare JSON array or an object with a
// "faces" array, tolerating surrounding prose.
func parseDetectorOutput(content string) ([]Detection, error) {
	trimmed := strings.TrimSpace(content)

	var faces []Detection
	if start, end := strings.Index(trimmed, "["), strings.LastIndex(trimmed, "]"); start != -1 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &faces); err != nil {
			return nil, err
		}
	} else if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start != -1 && end > start {
		var wrapped struct {
			Faces []Detection `json:"faces"`
		}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &wrapped); err != nil {
			return nil, err
		}
		faces = wrapped.Faces
	} else {
		return nil, errors.New("missing json array")
	}

	detections := make([]Detection, 0, len(faces))
	for _, face := range faces {
		label := face.DominantEmotion
		if strings.TrimSpace(label) == "" {
			label = strongest(face.Emotion)
		}
		if label == "" {
			continue
		}
		face.DominantEmotion = string(analysis.Normalize(label))
		detections = append(detections, face)
	}
	return detections, nil
}

func strongest(scores map[string]float64) string {
	best, bestScore := "", -1.0
	for label, score := range scores {
		if score > bestScore || (score == bestScore && label < best) {
			best, bestScore = label, score
		}
	}
	return best
}

func visionSystemPrompt() string {
	labels := analysis.Labels()
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, string(l))
	}
	return "You are a facial expression classifier. Find every human face in the image and judge its expression.\n" +
		"Output only a JSON array, one object per face ordered from largest to smallest face, with fields: " +
		"dominant_emotion (one of " + strings.Join(names, "/") + "), " +
		"emotion (object mapping each label to a score between 0 and 100), " +
		"region (object with integer pixel fields x, y, w, h). " +
		"Return [] when no face is visible. Do not output any other text."
}

const visionUserPrompt = "Classify the facial expressions in this camera frame."
