package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/emotalk/backend/internal/analysis/emotion"
	"github.com/zhouzirui/emotalk/backend/internal/model/persona"
)

const systemTemplate = "You are an AI assistant. The user is feeling %s, you don't have to mention it, just act according to the emotion the user is currently feeling. Act like a human that has a %s personality "

// BuildSystemPrompt creates the system instruction for one exchange. preset is
// nil when the personality is free text.
func BuildSystemPrompt(emotionLabel, personality string, preset *persona.Persona) string {
	base := fmt.Sprintf(systemTemplate, emotionLabel, personality)

	hint := emotion.Describe(emotion.Normalize(emotionLabel))
	if preset == nil && hint == "" {
		return base
	}

	var builder strings.Builder
	builder.WriteString(base)
	if preset != nil {
		builder.WriteString("\n\nPersonality tone: ")
		builder.WriteString(preset.Tone)
		builder.WriteString(".")
		if preset.Description != "" {
			builder.WriteString(" ")
			builder.WriteString(preset.Description)
		}
		for _, h := range preset.Hints {
			builder.WriteString("\n- ")
			builder.WriteString(h)
		}
	}
	if hint != "" {
		builder.WriteString("\n\nTone guidance: ")
		builder.WriteString(hint)
	}
	return builder.String()
}
