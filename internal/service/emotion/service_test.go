package emotion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type stubDetector struct {
	detections []Detection
	err        error
	got        []byte
}

func (s *stubDetector) Detect(_ context.Context, image []byte) ([]Detection, error) {
	s.got = image
	return s.detections, s.err
}

func TestClassifyNoFace(t *testing.T) {
	c, _ := NewClassifier(&stubDetector{})

	got, err := c.Classify(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Classify err: %v", err)
	}
	if got != (Result{Status: StatusError, Message: NoFaceMessage}) {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyFirstDetectionWins(t *testing.T) {
	stub := &stubDetector{detections: []Detection{{DominantEmotion: "happy"}, {DominantEmotion: "sad"}}}
	c, _ := NewClassifier(stub)

	got, err := c.Classify(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Classify err: %v", err)
	}
	if got != (Result{Status: StatusSuccess, Emotion: "happy"}) {
		t.Fatalf("unexpected result: %+v", got)
	}
	if string(stub.got) != "frame" {
		t.Fatalf("detector should receive the whole buffer, got %q", stub.got)
	}
}

func TestClassifyDetectorFault(t *testing.T) {
	c, _ := NewClassifier(&stubDetector{err: errors.New("model offline")})

	if _, err := c.Classify(context.Background(), []byte("frame")); err == nil {
		t.Fatal("expected detector fault to surface")
	}
}

type fakeVisionModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeVisionModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeVisionModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestVisionDetectorSendsImage(t *testing.T) {
	fake := &fakeVisionModel{reply: `[{"dominant_emotion":"Happy","emotion":{"happy":91.2,"neutral":8.8},"region":{"x":10,"y":12,"w":80,"h":80}}]`}
	d, _ := NewVisionDetector(fake)

	faces, err := d.Detect(context.Background(), pngHeader)
	if err != nil {
		t.Fatalf("Detect err: %v", err)
	}
	if len(faces) != 1 || faces[0].DominantEmotion != "happy" {
		t.Fatalf("unexpected detections: %+v", faces)
	}
	if faces[0].Region == nil || faces[0].Region.W != 80 {
		t.Fatalf("region not parsed: %+v", faces[0].Region)
	}

	if len(fake.input) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(fake.input))
	}
	parts := fake.input[1].MultiContent
	if len(parts) != 2 || parts[1].ImageURL == nil {
		t.Fatalf("expected text and image parts, got %+v", parts)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Fatalf("unexpected data url prefix: %.40s", parts[1].ImageURL.URL)
	}
}

func TestVisionDetectorEmptyArray(t *testing.T) {
	d, _ := NewVisionDetector(&fakeVisionModel{reply: "Sure: []"})

	faces, err := d.Detect(context.Background(), pngHeader)
	if err != nil {
		t.Fatalf("Detect err: %v", err)
	}
	if len(faces) != 0 {
		t.Fatalf("expected no faces, got %+v", faces)
	}
}

func TestVisionDetectorEmptyImage(t *testing.T) {
	fake := &fakeVisionModel{reply: "[]"}
	d, _ := NewVisionDetector(fake)

	faces, err := d.Detect(context.Background(), nil)
	if err != nil || faces != nil {
		t.Fatalf("expected no call for empty frame, got %+v %v", faces, err)
	}
	if fake.input != nil {
		t.Fatal("model should not be called for an empty frame")
	}
}

func TestParseDetectorOutputVariants(t *testing.T) {
	faces, err := parseDetectorOutput(`{"faces":[{"emotion":{"fear":70,"neutral":30}}]}`)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(faces) != 1 || faces[0].DominantEmotion != "fearful" {
		t.Fatalf("expected strongest score to be used, got %+v", faces)
	}

	if _, err := parseDetectorOutput("no faces here"); err == nil {
		t.Fatal("expected error for output without json")
	}
}

func TestVisionDetectorModelFault(t *testing.T) {
	d, _ := NewVisionDetector(&fakeVisionModel{err: errors.New("quota exceeded")})

	if _, err := d.Detect(context.Background(), pngHeader); err == nil {
		t.Fatal("expected model fault to surface")
	}
}
