package persona

import "testing"

func TestFindByIDIgnoresCase(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("  Sarcastic ")
	if !ok {
		t.Fatal("expected sarcastic preset to be found")
	}
	if got.ID != "sarcastic" {
		t.Fatalf("unexpected preset: %s", got.ID)
	}
}

func TestFindByIDUnknown(t *testing.T) {
	store := NewMemoryStore(Seed())
	if _, ok := store.FindByID("grumpy pirate"); ok {
		t.Fatal("expected unknown personality to miss")
	}
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	list := store.List()
	list[0].ID = "mutated"

	if _, ok := store.FindByID(DefaultID); !ok {
		t.Fatal("store should not be affected by caller mutation")
	}
}
