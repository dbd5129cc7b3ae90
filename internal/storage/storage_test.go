package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "butler.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ---- memos ----

func TestMemoStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	memos := NewMemoStore(openTestDB(t))

	if _, ok, err := memos.Get(ctx, "hoge"); err != nil || ok {
		t.Fatalf("Get before set = ok %v, err %v", ok, err)
	}

	if err := memos.Set(ctx, "hoge", "first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := memos.Set(ctx, "hoge", "second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	value, ok, err := memos.Get(ctx, "hoge")
	if err != nil || !ok || value != "second" {
		t.Errorf("Get = %q, %v, %v", value, ok, err)
	}

	if err := memos.Delete(ctx, "hoge"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := memos.Get(ctx, "hoge"); ok {
		t.Error("memo survived delete")
	}
	if err := memos.Delete(ctx, "hoge"); err != nil {
		t.Errorf("Delete absent key: %v", err)
	}
}

func TestMemoStore_AllOrderedByKey(t *testing.T) {
	ctx := context.Background()
	memos := NewMemoStore(openTestDB(t))

	for _, kv := range [][2]string{{"zzz", "3"}, {"aaa", "1"}, {"mmm", "2"}} {
		if err := memos.Set(ctx, kv[0], kv[1]); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	all, err := memos.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d memos, want 3", len(all))
	}
	for i, want := range []string{"aaa", "mmm", "zzz"} {
		if all[i].Key != want {
			t.Errorf("all[%d].Key = %q, want %q", i, all[i].Key, want)
		}
	}
}

// ---- stickers ----

func TestStickerStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	stickers := NewStickerStore(openTestDB(t))

	url := "https://example.com/hoge.jpg"
	if err := stickers.Set(ctx, url, "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := stickers.Set(ctx, url, "xyz"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	st, ok, err := stickers.Get(ctx, url)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if st.URL != url || st.Regexp != "xyz" {
		t.Errorf("sticker = %+v", st)
	}

	if err := stickers.Delete(ctx, url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := stickers.Get(ctx, url); ok {
		t.Error("sticker survived delete")
	}

	all, err := stickers.All(ctx)
	if err != nil || len(all) != 0 {
		t.Errorf("All after delete = %v, %v", all, err)
	}
}

// ---- pomodoro ----

func TestPomodoroStore_SeededIdleRow(t *testing.T) {
	ctx := context.Background()
	pomodoro := NewPomodoroStore(openTestDB(t))

	status, err := pomodoro.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if status.StartAt != nil || status.Spent != 0 || status.Wave != 0 || !status.Rest {
		t.Errorf("initial status = %+v, want idle defaults", status)
	}
}

func TestPomodoroStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	pomodoro := NewPomodoroStore(openTestDB(t))

	start := time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
	want := PomodoroStatus{StartAt: &start, Spent: 12, Wave: 2, Rest: false}
	if err := pomodoro.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := pomodoro.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StartAt == nil || !got.StartAt.Equal(start) {
		t.Errorf("StartAt = %v, want %v", got.StartAt, start)
	}
	if got.Spent != 12 || got.Wave != 2 || got.Rest {
		t.Errorf("status = %+v", got)
	}

	if err := pomodoro.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, err = pomodoro.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reset: %v", err)
	}
	if got.StartAt != nil || got.Spent != 0 || got.Wave != 0 || !got.Rest {
		t.Errorf("status after reset = %+v", got)
	}
}
