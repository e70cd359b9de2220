package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Articles(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	entries := []*CatalogEntry{
		{VectorID: "129AC0000000089_第五百五十七条", LawID: "129AC0000000089", LawTitle: "民法", ArticleTitle: "第五百五十七条", ArticleCaption: "（手付）"},
		{VectorID: "129AC0000000089_第一条", LawID: "129AC0000000089", LawTitle: "民法", ArticleTitle: "第一条"},
		{VectorID: "417AC0000000086_第二条", LawID: "417AC0000000086", LawTitle: "会社法", ArticleTitle: "第二条"},
	}
	if err := store.UpsertArticles(ctx, entries); err != nil {
		t.Fatal(err)
	}
	if entries[0].IndexedAt.IsZero() {
		t.Error("IndexedAt should be set")
	}

	got, err := store.GetArticle(ctx, "129AC0000000089_第五百五十七条")
	if err != nil {
		t.Fatal(err)
	}
	if got.LawTitle != "民法" || got.ArticleCaption != "（手付）" {
		t.Errorf("got %+v", got)
	}
	if _, err := store.GetArticle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	many, err := store.GetArticles(ctx, []string{"129AC0000000089_第一条", "417AC0000000086_第二条", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(many) != 2 || many["417AC0000000086_第二条"].LawTitle != "会社法" {
		t.Errorf("GetArticles = %+v", many)
	}

	n, _ := store.CountArticles(ctx)
	laws, _ := store.CountLaws(ctx)
	if n != 3 || laws != 2 {
		t.Errorf("counts = %d articles, %d laws", n, laws)
	}

	// Upsert replaces rather than duplicates.
	entries[1].ArticleCaption = "（基本原則）"
	if err := store.UpsertArticles(ctx, entries[1:2]); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountArticles(ctx); n != 3 {
		t.Errorf("expected 3 after upsert, got %d", n)
	}

	if err := store.DeleteLaw(ctx, "129AC0000000089"); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountArticles(ctx); n != 1 {
		t.Errorf("expected 1 after DeleteLaw, got %d", n)
	}
}

func TestSQLiteStore_Blobs(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if _, ok, err := store.GetBlob(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.SetBlob(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	data, ok, err := store.GetBlob(ctx, "k")
	if err != nil || !ok || string(data) != "v" {
		t.Errorf("GetBlob = %q, %v, %v", data, ok, err)
	}

	if err := store.SetBlob(ctx, "old", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := store.GetBlob(ctx, "old"); ok {
		t.Error("expired blob should be a miss")
	}
}
