package emotion

import "strings"

// Label 表示一个情绪标签。取值不做强制校验，未知标签原样透传。
type Label string

// Face-expression vocabulary reported by the frame classifier and sent by the web client.
const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Fearful   Label = "fearful"
	Disgusted Label = "disgusted"
	Surprised Label = "surprised"
)

var known = []Label{Neutral, Happy, Sad, Angry, Fearful, Disgusted, Surprised}

var synonyms = map[string]Label{
	"calm":      Neutral,
	"happiness": Happy,
	"joy":       Happy,
	"sadness":   Sad,
	"anger":     Angry,
	"fear":      Fearful,
	"scared":    Fearful,
	"disgust":   Disgusted,
	"surprise":  Surprised,
}

var descriptions = map[Label]string{
	Neutral:   "Keep a clear, natural and polite tone.",
	Happy:     "Match the good mood with a light, upbeat tone.",
	Sad:       "Be gentle and empathetic; offer comfort without pushing.",
	Angry:     "Stay steady and reasonable; acknowledge the frustration first.",
	Fearful:   "Be reassuring and grounded; reduce uncertainty.",
	Disgusted: "Stay respectful and avoid dwelling on unpleasant details.",
	Surprised: "Share the curiosity and help make sense of what happened.",
}

// Labels returns the known vocabulary in a stable order.
func Labels() []Label {
	return append([]Label(nil), known...)
}

// Normalize lower-cases raw and maps common synonyms onto the vocabulary.
func Normalize(raw string) Label {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if label, ok := synonyms[normalized]; ok {
		return label
	}
	return Label(normalized)
}

// Known reports whether l belongs to the vocabulary.
func (l Label) Known() bool {
	_, ok := descriptions[l]
	return ok
}

// Describe returns a one-line tone hint for known labels and "" otherwise.
func Describe(l Label) string {
	return descriptions[l]
}
