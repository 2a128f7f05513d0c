package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var longAnswer = strings.Repeat("დღგ-ს განაკვეთი 18%-ია. ", 5)

func TestFollowUpGeneratorParsesSuggestions(t *testing.T) {
	gen := &generatorFake{replies: []scriptedReply{okReply("```json\n" +
		`[{"title":"a","payload":"A?"},{"title":"","payload":"skip"},{"title":"b","payload":"B?"},{"title":"c","payload":"C?"}]` +
		"\n```")}}
	got := NewFollowUpGenerator(gen, "m", 2, time.Second).Generate(context.Background(), "q", longAnswer)
	if len(got) != 2 || got[0].Title != "a" || got[1].Payload != "B?" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
	if !gen.requests[0].JSON || gen.requests[0].Temperature != 0.7 {
		t.Fatalf("unexpected request %+v", gen.requests[0])
	}
}

func TestFollowUpGeneratorSkipsShortAnswers(t *testing.T) {
	gen := &generatorFake{replies: []scriptedReply{okReply(`[]`)}}
	got := NewFollowUpGenerator(gen, "m", 4, time.Second).Generate(context.Background(), "q", "short")
	if len(got) != 0 || gen.calls() != 0 {
		t.Fatalf("expected no call for short answers")
	}
}

func TestFollowUpGeneratorFailsSafe(t *testing.T) {
	for name, gen := range map[string]*generatorFake{
		"error":   {replies: []scriptedReply{{err: errors.New("down")}}},
		"garbage": {replies: []scriptedReply{okReply("not json")}},
		"timeout": {block: true},
	} {
		got := NewFollowUpGenerator(gen, "m", 4, 10*time.Millisecond).Generate(context.Background(), "q", longAnswer)
		if got == nil || len(got) != 0 {
			t.Errorf("%s: expected empty list, got %+v", name, got)
		}
	}
}
