package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/emotalk/backend/internal/model/chat"
	"github.com/zhouzirui/emotalk/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/emotalk/backend/internal/service/chat"
)

type fakeChatModel struct {
	mu        sync.Mutex
	inputs    [][]*schema.Message
	maxTokens []int

	chunks    []string
	streamErr error
	recvErr   error
	hold      chan struct{}
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(strings.Join(f.chunks, ""), nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	if common := model.GetCommonOptions(nil, opts...); common.MaxTokens != nil {
		f.maxTokens = append(f.maxTokens, *common.MaxTokens)
	}
	f.mu.Unlock()

	if f.streamErr != nil {
		return nil, f.streamErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range f.chunks {
			if closed := sw.Send(schema.AssistantMessage(c, nil), nil); closed {
				return
			}
		}
		if f.hold != nil {
			select {
			case <-f.hold:
			case <-ctx.Done():
				return
			}
		}
		if f.recvErr != nil {
			sw.Send(nil, f.recvErr)
		}
	}()
	return sr, nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func (f *fakeChatModel) calls() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*schema.Message(nil), f.inputs...)
}

func newTestService(t *testing.T, fake *fakeChatModel) (*Service, *chatservice.Service) {
	t.Helper()
	store := chatservice.NewService()
	svc, err := NewService(context.Background(), fake, store, persona.NewMemoryStore(persona.Seed()), Config{
		HistoryLimit: 10,
		MaxTokens:    500,
	})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	return svc, store
}

func collect(t *testing.T, sr *schema.StreamReader[chat.Event]) []chat.Event {
	t.Helper()
	defer sr.Close()

	var events []chat.Event
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		events = append(events, ev)
	}
}

func TestRespondStreamsAndCommits(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Hey", " there", ", friend."}}
	svc, store := newTestService(t, fake)

	sr, err := svc.Respond(context.Background(), Request{Emotion: "sad", Message: "hello", ConversationID: "abc"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	events := collect(t, sr)

	if len(events) != 4 {
		t.Fatalf("expected 3 message events and 1 complete, got %+v", events)
	}
	var joined strings.Builder
	for _, ev := range events[:3] {
		if ev.Kind != chat.EventMessage {
			t.Fatalf("expected message event, got %+v", ev)
		}
		joined.WriteString(ev.Text)
	}
	if last := events[3]; last.Kind != chat.EventComplete || last.Text != chat.CompleteText {
		t.Fatalf("unexpected terminal event: %+v", last)
	}

	turns, _ := store.History(context.Background(), "abc")
	if len(turns) != 2 {
		t.Fatalf("expected 2 stored turns, got %d", len(turns))
	}
	if turns[0].Role != chat.RoleUser || turns[0].Content != "hello" {
		t.Fatalf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != chat.RoleAssistant || turns[1].Content != joined.String() {
		t.Fatalf("unexpected assistant turn: %+v", turns[1])
	}

	calls := fake.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one remote call, got %d", len(calls))
	}
	system := calls[0][0]
	if system.Role != schema.System || !strings.Contains(system.Content, "feeling sad") {
		t.Fatalf("unexpected system message: %+v", system)
	}
	if !strings.Contains(system.Content, "friendly personality") {
		t.Fatalf("expected default personality in system prompt: %s", system.Content)
	}
	if user := calls[0][len(calls[0])-1]; user.Role != schema.User || user.Content != "hello" {
		t.Fatalf("unexpected user message: %+v", user)
	}
	if len(fake.maxTokens) != 1 || fake.maxTokens[0] != 500 {
		t.Fatalf("expected max tokens 500, got %v", fake.maxTokens)
	}
}

func TestRespondStreamErrorSkipsCommit(t *testing.T) {
	fake := &fakeChatModel{streamErr: errors.New("upstream unavailable")}
	svc, store := newTestService(t, fake)

	sr, err := svc.Respond(context.Background(), Request{Emotion: "happy", Message: "hi", ConversationID: "abc"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	events := collect(t, sr)

	if len(events) != 1 || events[0].Kind != chat.EventError {
		t.Fatalf("expected a single error event, got %+v", events)
	}
	if !strings.HasPrefix(events[0].Text, "Error generating response:") {
		t.Fatalf("unexpected error text: %s", events[0].Text)
	}
	if turns, _ := store.History(context.Background(), "abc"); turns != nil {
		t.Fatalf("expected no history, got %+v", turns)
	}
}

func TestRespondMidStreamErrorDiscardsPartial(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"partial"}, recvErr: errors.New("connection reset")}
	svc, store := newTestService(t, fake)
	ctx := context.Background()
	_ = store.Append(ctx, "abc", chat.UserTurn("earlier"), chat.AssistantTurn("reply"))

	sr, err := svc.Respond(ctx, Request{Emotion: "happy", Message: "hi", ConversationID: "abc"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	events := collect(t, sr)

	if len(events) != 2 {
		t.Fatalf("expected message then error, got %+v", events)
	}
	if events[0].Kind != chat.EventMessage || events[1].Kind != chat.EventError {
		t.Fatalf("unexpected event kinds: %+v", events)
	}

	turns, _ := store.History(ctx, "abc")
	if len(turns) != 2 {
		t.Fatalf("history should be unchanged, got %+v", turns)
	}
}

func TestRespondValidation(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"x"}}
	svc, _ := newTestService(t, fake)

	if _, err := svc.Respond(context.Background(), Request{Message: "hi"}); !errors.Is(err, ErrEmotionRequired) {
		t.Fatalf("expected ErrEmotionRequired, got %v", err)
	}
	if _, err := svc.Respond(context.Background(), Request{Emotion: "sad", Message: "   "}); !errors.Is(err, ErrMessageRequired) {
		t.Fatalf("expected ErrMessageRequired, got %v", err)
	}
	if calls := fake.calls(); len(calls) != 0 {
		t.Fatalf("expected no remote call, got %d", len(calls))
	}
}

func TestRespondSendsOnlyRecentHistory(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"ok"}}
	svc, store := newTestService(t, fake)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = store.Append(ctx, "abc",
			chat.UserTurn("user-"+string(rune('a'+i))),
			chat.AssistantTurn("assistant-"+string(rune('a'+i))))
	}

	sr, err := svc.Respond(ctx, Request{Emotion: "neutral", Message: "latest", ConversationID: "abc"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	collect(t, sr)

	input := fake.calls()[0]
	// system + 10 history turns + new user message
	if len(input) != 12 {
		t.Fatalf("expected 12 messages, got %d", len(input))
	}
	if input[1].Content != "user-b" {
		t.Fatalf("expected window to start at second exchange, got %q", input[1].Content)
	}
	if input[10].Content != "assistant-f" {
		t.Fatalf("expected window to end at newest turn, got %q", input[10].Content)
	}

	turns, _ := store.History(ctx, "abc")
	if len(turns) != 14 {
		t.Fatalf("stored history should keep every turn, got %d", len(turns))
	}
}

func TestRespondCancelledSkipsCommit(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"first"}, hold: make(chan struct{})}
	svc, store := newTestService(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	sr, err := svc.Respond(ctx, Request{Emotion: "sad", Message: "hello", ConversationID: "abc"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}

	first, err := sr.Recv()
	if err != nil || first.Kind != chat.EventMessage {
		t.Fatalf("expected first message event, got %+v %v", first, err)
	}
	cancel()

	for _, ev := range collect(t, sr) {
		if ev.Kind == chat.EventComplete {
			t.Fatalf("cancelled stream must not complete: %+v", ev)
		}
	}

	if turns, _ := store.History(context.Background(), "abc"); turns != nil {
		t.Fatalf("expected no history after cancellation, got %+v", turns)
	}
}

func TestRespondSerializesSameConversation(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"ok"}}
	svc, store := newTestService(t, fake)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sr, err := svc.Respond(ctx, Request{Emotion: "happy", Message: "hi", ConversationID: "shared"})
			if err != nil {
				t.Errorf("Respond err: %v", err)
				return
			}
			collect(t, sr)
		}()
	}
	wg.Wait()

	turns, _ := store.History(ctx, "shared")
	if len(turns) != 4 {
		t.Fatalf("expected both exchanges stored, got %d turns", len(turns))
	}

	sizes := map[int]bool{}
	for _, input := range fake.calls() {
		sizes[len(input)] = true
	}
	// one exchange saw an empty history, the other saw the first exchange.
	if !sizes[2] || !sizes[4] {
		t.Fatalf("expected serialized history reads, got input sizes %v", sizes)
	}
}

func TestClearConversation(t *testing.T) {
	svc, store := newTestService(t, &fakeChatModel{})
	ctx := context.Background()
	_ = store.Append(ctx, "abc", chat.UserTurn("hello"))

	if err := svc.ClearConversation(ctx, "abc"); err != nil {
		t.Fatalf("ClearConversation err: %v", err)
	}
	if err := svc.ClearConversation(ctx, "abc"); !errors.Is(err, chatservice.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}
