package sanitizer

import (
	"regexp"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// Feature: text-sanitizer, Property 1: Plain text is preserved
// *For any* text without markup characters, Clean returns it trimmed and
// otherwise unchanged.
func TestProperty1_PlainTextPreserved(t *testing.T) {
	s := NewTextSanitizer()

	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z0-9áéíóúñÁÉÍÓÚÑ ,.;:!?()'"-]{0,80}`).Draw(t, "text")

		if got := s.Clean(text); got != strings.TrimSpace(text) {
			t.Fatalf("expected %q, got %q", strings.TrimSpace(text), got)
		}
	})
}

// Feature: text-sanitizer, Property 2: Markup is removed
// *For any* text wrapped in arbitrary elements with attributes, Clean keeps
// the text and drops every tag and event handler.
func TestProperty2_MarkupRemoved(t *testing.T) {
	s := NewTextSanitizer()
	tagRegex := regexp.MustCompile(`<[a-zA-Z/]`)

	rapid.Check(t, func(t *rapid.T) {
		tag := rapid.SampledFrom([]string{"b", "i", "p", "div", "span", "a", "h1", "em"}).Draw(t, "tag")
		handler := rapid.SampledFrom([]string{"onclick", "onload", "onerror", "onmouseover"}).Draw(t, "handler")
		text := rapid.StringMatching(`[a-zA-Z0-9 ]{1,40}`).Draw(t, "text")

		input := "<" + tag + " " + handler + `="alert(1)">` + text + "</" + tag + ">"
		got := s.Clean(input)

		if tagRegex.MatchString(got) {
			t.Fatalf("tag left in output: %q", got)
		}
		if strings.Contains(got, handler) {
			t.Fatalf("event handler left in output: %q", got)
		}
		if got != strings.TrimSpace(text) {
			t.Fatalf("expected %q, got %q", strings.TrimSpace(text), got)
		}
	})
}

// Feature: text-sanitizer, Property 3: Script bodies are dropped
func TestProperty3_ScriptBodyDropped(t *testing.T) {
	s := NewTextSanitizer()

	rapid.Check(t, func(t *rapid.T) {
		before := rapid.StringMatching(`[a-zA-Z]{1,20}`).Draw(t, "before")
		script := rapid.StringMatching(`[a-zA-Z0-9(){};=]{6,40}`).Draw(t, "script")

		got := s.Clean(before + "<script>" + script + "</script>")
		if strings.Contains(strings.ToLower(got), "<script") || strings.Contains(got, script) {
			t.Fatalf("script survived: %q", got)
		}
		if got != before {
			t.Fatalf("expected %q, got %q", before, got)
		}
	})
}

func TestClean_Entities(t *testing.T) {
	s := NewTextSanitizer()

	if got := s.Clean("Sal & pimienta"); got != "Sal & pimienta" {
		t.Errorf("expected ampersand preserved, got %q", got)
	}
	if got := s.Clean("  Tortilla <b>española</b>  "); got != "Tortilla española" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestCleanHelpers(t *testing.T) {
	s := NewTextSanitizer()

	if s.CleanPtr(nil) != nil {
		t.Error("expected nil for nil input")
	}
	bio := "<i>Cocinera</i>"
	if got := s.CleanPtr(&bio); got == nil || *got != "Cocinera" {
		t.Errorf("unexpected result %v", got)
	}

	got := s.CleanAll([]string{"<p>huevos</p>", "patatas"})
	if got[0] != "huevos" || got[1] != "patatas" {
		t.Errorf("unexpected result %v", got)
	}
}
