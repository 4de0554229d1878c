package migrations

import "testing"

// Registration panics at package init when a migration file's name does not
// carry the digit prefix bun requires, so this test failing to even run is
// itself the signal.
func TestRegisteredMigrations(t *testing.T) {
	sorted := Migrations.Sorted()
	if len(sorted) != 3 {
		t.Fatalf("expected 3 registered migrations, got %d", len(sorted))
	}
	comments := []string{"create_questions", "create_users", "create_rooms"}
	for i, m := range sorted {
		if m.Comment != comments[i] {
			t.Fatalf("migration %d: expected comment %q, got %q", i, comments[i], m.Comment)
		}
	}
}
