package cache

import "testing"

func TestKey_Deterministic(t *testing.T) {
	first := Key("proj-1", "gpt-4o", 0.7, 1024, "Hello world")
	second := Key("proj-1", "gpt-4o", 0.7, 1024, "Hello world")
	if first != second {
		t.Fatalf("expected identical keys, got %q and %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}

func TestKey_TrimsPromptWhitespace(t *testing.T) {
	plain := Key("proj-1", "gpt-4o", 0.7, 1024, "Hello world")
	padded := Key("proj-1", "gpt-4o", 0.7, 1024, "  Hello world \n")
	if plain != padded {
		t.Fatal("expected whitespace-padded prompt to share a key")
	}
}

func TestKey_FieldSensitivity(t *testing.T) {
	base := Key("proj-1", "gpt-4o", 0.7, 1024, "Hello world")
	variants := []string{
		Key("proj-2", "gpt-4o", 0.7, 1024, "Hello world"),
		Key("proj-1", "gpt-4o-mini", 0.7, 1024, "Hello world"),
		Key("proj-1", "gpt-4o", 0.8, 1024, "Hello world"),
		Key("proj-1", "gpt-4o", 0.7, 2048, "Hello world"),
		Key("proj-1", "gpt-4o", 0.7, 1024, "Goodbye world"),
	}
	for i, variant := range variants {
		if variant == base {
			t.Fatalf("variant %d unexpectedly collided with base key", i)
		}
	}
}

func TestPromptHash_Deterministic(t *testing.T) {
	if PromptHash("Hello") != PromptHash(" Hello ") {
		t.Fatal("expected trimmed prompts to share a hash")
	}
	if PromptHash("Hello") == PromptHash("Goodbye") {
		t.Fatal("expected distinct prompts to differ")
	}
}
