package search

import (
	"testing"

	"github.com/hyperjump/joubun/internal/models"
)

func TestSnippet(t *testing.T) {
	a := &models.Article{
		Title: "第九十条",
		Paragraphs: []models.Paragraph{{
			Num:       "1",
			Sentences: []models.Sentence{{Text: "公の秩序又は善良の風俗に反する法律行為は、無効とする。"}},
		}},
	}
	if got := Snippet(a, 6); got != "公の秩序又は..." {
		t.Errorf("got %q", got)
	}
	if got := Snippet(a, 0); got != "公の秩序又は善良の風俗に反する法律行為は、無効とする。" {
		t.Errorf("maxLen 0 should return the whole text, got %q", got)
	}
	if Snippet(nil, 10) != "" {
		t.Error("nil article should yield empty snippet")
	}
}
