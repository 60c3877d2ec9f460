package store

import (
	"testing"

	"restock-notifier/pkg/restock"
)

func TestProductDocID(t *testing.T) {
	tests := []struct {
		store string
		name  string
		want  string
	}{
		{"Target", "Scarlet Booster Box", "target_scarlet_booster_box"},
		{"Best Buy", "151 ETB", "best_buy_151_etb"},
		{"GameStop", "Obsidian Flames Inc.", "gamestop_obsidian_flames_inc"},
		{"  Target  ", "Tin", "target_tin"},
	}

	for _, tt := range tests {
		if got := productDocID(tt.store, tt.name); got != tt.want {
			t.Errorf("productDocID(%q, %q) = %q, want %q", tt.store, tt.name, got, tt.want)
		}
	}
}

func TestRemoveID(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		id   string
		want int
	}{
		{"present", []string{"a", "b", "c"}, "b", 2},
		{"absent", []string{"a", "b"}, "z", 2},
		{"only element", []string{"a"}, "a", 0},
		{"empty", nil, "a", 0},
		{"duplicates all removed", []string{"a", "b", "a"}, "a", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := removeID(tt.ids, tt.id)
			if len(got) != tt.want {
				t.Errorf("removeID(%v, %q) = %v, want %d elements", tt.ids, tt.id, got, tt.want)
			}
			for _, v := range got {
				if v == tt.id {
					t.Errorf("removeID left %q in %v", tt.id, got)
				}
			}
		})
	}
}

// TestPreferenceAfterRemoval pins the removal policy: a subscription whose
// explicit list empties falls back to following all products.
func TestPreferenceAfterRemoval(t *testing.T) {
	if got := preferenceAfterRemoval([]string{"p2"}); got != restock.PreferenceSpecific {
		t.Errorf("non-empty list: got %q, want %q", got, restock.PreferenceSpecific)
	}
	if got := preferenceAfterRemoval(nil); got != restock.PreferenceAll {
		t.Errorf("empty list: got %q, want %q", got, restock.PreferenceAll)
	}
	if got := preferenceAfterRemoval([]string{}); got != restock.PreferenceAll {
		t.Errorf("empty list: got %q, want %q", got, restock.PreferenceAll)
	}
}
