package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode"

	"docrag/internal/domain"
)

const sample = `Vitamin C is found in citrus fruits. Iron deficiency causes anemia.
Calcium supports bone health, and vitamin D helps the body absorb it.
Fiber improves digestion.`

func TestWindowChunkerBasic(t *testing.T) {
	chunker, err := NewWindowChunker(50, 10)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := chunker.Chunk(sample)
	if err != nil {
		t.Fatal(err)
	}

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	runes := []rune(sample)
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if chunk.Text == "" {
			t.Error("chunk has empty text")
		}
		if chunk.End-chunk.Start > 50 {
			t.Errorf("chunk %d spans %d runes, want <= 50", i, chunk.End-chunk.Start)
		}
		if string(runes[chunk.Start:chunk.End]) != chunk.Text {
			t.Errorf("chunk %d span [%d,%d) does not match its text", i, chunk.Start, chunk.End)
		}
		if strings.TrimSpace(chunk.Text) != chunk.Text {
			t.Errorf("chunk %d is not trimmed: %q", i, chunk.Text)
		}
	}
}

func TestWindowChunkerDeterministic(t *testing.T) {
	first, err := Split(sample, 37, 5)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Split(sample, 37, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input produced different chunk sequences")
	}
}

func TestWindowChunkerCoverage(t *testing.T) {
	for _, params := range [][2]int{{10, 0}, {10, 3}, {25, 24}, {1, 0}, {200, 50}} {
		size, overlap := params[0], params[1]
		chunks, err := Split(sample, size, overlap)
		if err != nil {
			t.Fatal(err)
		}

		covered := make([]bool, len([]rune(sample)))
		for _, c := range chunks {
			for i := c.Start; i < c.End; i++ {
				covered[i] = true
			}
		}
		for i, r := range []rune(sample) {
			if !unicode.IsSpace(r) && !covered[i] {
				t.Fatalf("size=%d overlap=%d: rune %d (%q) not covered by any chunk", size, overlap, i, r)
			}
		}

		for i := 1; i < len(chunks); i++ {
			if chunks[i].Start < chunks[i-1].Start {
				t.Errorf("size=%d overlap=%d: chunk starts are not ordered", size, overlap)
			}
		}
	}
}

func TestWindowChunkerOverlap(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks, err := Split(text, 10, 4)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"abcdefghij", "ghijklmnop", "mnopqrstuv", "stuvwxyz"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Text)
		}
	}
}

func TestWindowChunkerSentences(t *testing.T) {
	text := "Vitamin C is found in citrus fruits. Iron deficiency causes anemia."
	chunks, err := Split(text, 37, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "Vitamin C is found in citrus fruits." {
		t.Errorf("unexpected first chunk %q", chunks[0].Text)
	}
	if chunks[1].Text != "Iron deficiency causes anemia." {
		t.Errorf("unexpected second chunk %q", chunks[1].Text)
	}
}

func TestWindowChunkerTrailingWhitespace(t *testing.T) {
	chunks, err := Split("hello world   \n\t  ", 11, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("whitespace-only tail should be dropped, got %d chunks", len(chunks))
	}
	if chunks[0].Text != "hello world" {
		t.Errorf("unexpected chunk %q", chunks[0].Text)
	}
}

func TestWindowChunkerEmptyContent(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \n"} {
		chunks, err := Split(text, 50, 10)
		if err != nil {
			t.Fatalf("empty input should not fail: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestWindowChunkerMultibyte(t *testing.T) {
	text := "Überprüfung der Größe ist wichtig"
	chunks, err := Split(text, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if chunks[0].Text != "Überp" {
		t.Errorf("windows should count runes, got %q", chunks[0].Text)
	}
}

func TestWindowChunkerInvalidParams(t *testing.T) {
	cases := [][2]int{{0, 0}, {-5, 0}, {10, 10}, {10, 11}, {10, -1}}
	for _, c := range cases {
		if _, err := NewWindowChunker(c[0], c[1]); !errors.Is(err, domain.ErrConfig) {
			t.Errorf("size=%d overlap=%d: expected ErrConfig, got %v", c[0], c[1], err)
		}
		if _, err := Split("text", c[0], c[1]); !errors.Is(err, domain.ErrConfig) {
			t.Errorf("Split size=%d overlap=%d: expected ErrConfig, got %v", c[0], c[1], err)
		}
	}
}
