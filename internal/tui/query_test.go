package tui

import "testing"

func TestQueryModel(t *testing.T) {
	q := NewQueryModel()
	if q.Active {
		t.Fatal("Expected inactive query line")
	}

	q.Update(StartQueryMsg{})
	q.Update(UpdateQueryInputMsg{Input: "héllo"})
	q.Backspace()
	if q.Input != "héll" {
		t.Errorf("Expected rune-aware backspace, got %q", q.Input)
	}

	q.Update(ApplyQueryMsg{})
	if q.Active || q.Applied != "héll" {
		t.Errorf("Expected applied query, got active=%v applied=%q", q.Active, q.Applied)
	}

	// Editing starts from the applied query.
	q.Update(StartQueryMsg{})
	if q.Input != "héll" {
		t.Errorf("Expected input seeded from applied query, got %q", q.Input)
	}
	q.Update(CancelQueryMsg{})
	if q.Applied != "héll" {
		t.Error("Expected cancel to keep the applied query")
	}

	q.Update(ClearQueryMsg{})
	if q.Applied != "" || q.Input != "" {
		t.Error("Expected clear to reset the query")
	}
}
