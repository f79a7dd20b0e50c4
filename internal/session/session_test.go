package session

import (
	"context"
	"fmt"
	"testing"
)

// openTestManager returns a Manager backed by an in-memory database.
func openTestManager(t *testing.T, maxTurns int) *Manager {
	t.Helper()
	m, err := Open(":memory:", maxTurns)
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAppendAndHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := openTestManager(t, 10)

	id, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	if err := m.AppendTurn(ctx, id, RoleUser, "what is RAG?"); err != nil {
		t.Fatalf("AppendTurn() failed: %v", err)
	}
	if err := m.AppendTurn(ctx, id, RoleAssistant, "retrieval augmented generation"); err != nil {
		t.Fatalf("AppendTurn() failed: %v", err)
	}

	turns, err := m.History(ctx, id)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("history = %d turns, want 2", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "what is RAG?" {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant {
		t.Errorf("turn 1 role = %q", turns[1].Role)
	}
}

func TestHistory_UnknownSessionIsEmpty(t *testing.T) {
	t.Parallel()
	m := openTestManager(t, 10)

	turns, err := m.History(context.Background(), "never-created")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("history = %d turns, want 0", len(turns))
	}
}

func TestAppendTurn_FIFOEviction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const maxTurns = 4
	m := openTestManager(t, maxTurns)

	id, err := m.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Append one past the cap; the single oldest turn must drop.
	for i := 0; i < maxTurns+1; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := m.AppendTurn(ctx, id, role, fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("AppendTurn(%d) failed: %v", i, err)
		}
	}

	turns, err := m.History(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != maxTurns {
		t.Fatalf("history = %d turns, want %d", len(turns), maxTurns)
	}
	if turns[0].Content != "turn 1" {
		t.Errorf("oldest retained = %q, want %q", turns[0].Content, "turn 1")
	}
	if turns[maxTurns-1].Content != fmt.Sprintf("turn %d", maxTurns) {
		t.Errorf("newest retained = %q", turns[maxTurns-1].Content)
	}
}

func TestAppendTurn_ImplicitSessionCreation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := openTestManager(t, 10)

	// Appending to an externally supplied session ID must not require
	// CreateSession first.
	if err := m.AppendTurn(ctx, "external-id", RoleUser, "hello"); err != nil {
		t.Fatalf("AppendTurn() failed: %v", err)
	}
	turns, err := m.History(ctx, "external-id")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 {
		t.Errorf("history = %d turns, want 1", len(turns))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := openTestManager(t, 10)

	a, _ := m.CreateSession(ctx)
	b, _ := m.CreateSession(ctx)
	if a == b {
		t.Fatal("CreateSession() returned duplicate IDs")
	}

	if err := m.AppendTurn(ctx, a, RoleUser, "only in a"); err != nil {
		t.Fatal(err)
	}
	turns, err := m.History(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("session b sees %d turns from session a", len(turns))
	}
}
