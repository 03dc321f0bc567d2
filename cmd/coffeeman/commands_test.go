package main

import (
	"strings"
	"testing"

	"github.com/zackaholic/VHS-Coffeeman/internal/ipc"
)

func TestBuildRecipeRows(t *testing.T) {
	rows := buildRecipeRows([]ipc.RecipeSummary{
		{
			Name: "Margarita",
			Tag:  "DEADBEEF",
			Ingredients: []ipc.RecipeIngredient{
				{Pump: 2, Name: "tequila", AmountOz: 1.5},
				{Pump: 5, AmountOz: 0.5},
			},
			TotalOunces: 2.0,
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "Margarita" || row[1] != "DEADBEEF" {
		t.Fatalf("unexpected row %v", row)
	}
	if row[2] != "tequila 1.5oz, pump 5 0.5oz" {
		t.Fatalf("unexpected ingredient column %q", row[2])
	}
	if row[3] != "2.0oz" {
		t.Fatalf("unexpected total column %q", row[3])
	}
}

func TestBuildHistoryRows(t *testing.T) {
	rows := buildHistoryRows([]ipc.HistoryEntry{
		{
			Tag:              "DEADBEEF",
			Recipe:           "Margarita",
			Operation:        "pour",
			Status:           "failed",
			Fault:            "cup_removed",
			IngredientsTotal: 2,
			IngredientsDone:  1,
			StartedAt:        "2026-08-29T18:30:00Z",
		},
		{
			Recipe:    "prime channel 3 (200 mm)",
			Operation: "prime",
			Status:    "completed",
			StartedAt: "not-a-time",
		},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][4] != "failed (cup_removed)" {
		t.Fatalf("unexpected status column %q", rows[0][4])
	}
	if rows[0][5] != "1/2" {
		t.Fatalf("unexpected progress column %q", rows[0][5])
	}
	if !strings.Contains(rows[0][0], "2026") {
		t.Fatalf("expected formatted timestamp, got %q", rows[0][0])
	}
	if rows[1][0] != "not-a-time" {
		t.Fatalf("expected raw value for unparseable time, got %q", rows[1][0])
	}
	if rows[1][5] != "" {
		t.Fatalf("expected empty progress for maintenance, got %q", rows[1][5])
	}
}

func TestParseChannel(t *testing.T) {
	if ch, err := parseChannel(" 7 "); err != nil || ch != 7 {
		t.Fatalf("parseChannel = %d, %v", ch, err)
	}
	if _, err := parseChannel("seven"); err == nil {
		t.Fatal("expected error for non-numeric channel")
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	expected := []string{
		"start", "stop", "restart", "status", "daemon",
		"pour", "reset", "prime", "clean", "pump",
		"recipes", "history", "test-notify", "config",
	}
	for _, name := range expected {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing command %q", name)
		}
	}
}
