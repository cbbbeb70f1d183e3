package enroll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	vp := &Voiceprint{UserID: "user-1", Embedding: []float64{0.1, 0.2, 0.3}}
	if err := s.Put(ctx, vp); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "user-1" || len(got.Embedding) != 3 {
		t.Fatalf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be stamped on Put")
	}
}

func TestMemoryStoreNotEnrolled(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(context.Background(), "stranger"); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestMemoryStoreReplace(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Put(ctx, &Voiceprint{UserID: "u", Embedding: []float64{1}, CreatedAt: first}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, &Voiceprint{UserID: "u", Embedding: []float64{2, 3}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "u")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Embedding) != 2 || got.Embedding[0] != 2 {
		t.Fatalf("embedding = %v, want replacement", got.Embedding)
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, &Voiceprint{UserID: "u", Embedding: []float64{1}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "u"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "u"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, "u"); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, &Voiceprint{UserID: "u", Embedding: []float64{1, 2}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := s.Get(ctx, "u")
	got.Embedding[0] = 99

	again, _ := s.Get(ctx, "u")
	if again.Embedding[0] != 1 {
		t.Fatal("Get must not expose the stored slice")
	}
}
