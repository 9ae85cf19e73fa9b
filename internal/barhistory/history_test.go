package barhistory

import "testing"

func TestAddAndAll(t *testing.T) {
	t.Parallel()
	m := NewManager(3)
	m.Add(Entry{ID: "a", Imbalance: 1})
	m.Add(Entry{ID: "b", Imbalance: 2})

	all := m.All()
	if len(all) != 2 {
		t.Fatalf("len(All()) = %d, want 2", len(all))
	}
	if all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("All() = %+v, want chronological order [a b]", all)
	}
}

func TestDuplicateIDIgnored(t *testing.T) {
	t.Parallel()
	m := NewManager(5)
	m.Add(Entry{ID: "a", Imbalance: 1})
	m.Add(Entry{ID: "a", Imbalance: 999})

	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 after duplicate insertion", m.Size())
	}
	all := m.All()
	if all[0].Imbalance != 1 {
		t.Errorf("duplicate insertion overwrote entry: Imbalance = %v, want 1", all[0].Imbalance)
	}
}

func TestEvictionOnOverflow(t *testing.T) {
	t.Parallel()
	m := NewManager(2)
	m.Add(Entry{ID: "a"})
	m.Add(Entry{ID: "b"})
	m.Add(Entry{ID: "c"})

	if m.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 (capacity)", m.Size())
	}
	all := m.All()
	ids := []string{all[0].ID, all[1].ID}
	if ids[0] != "b" || ids[1] != "c" {
		t.Errorf("All() ids = %v, want [b c] after evicting a", ids)
	}
}

func TestEvictedIDCanBeReAdded(t *testing.T) {
	t.Parallel()
	m := NewManager(1)
	m.Add(Entry{ID: "a", Imbalance: 1})
	m.Add(Entry{ID: "b", Imbalance: 2})
	m.Add(Entry{ID: "a", Imbalance: 3})

	all := m.All()
	if len(all) != 1 || all[0].ID != "a" || all[0].Imbalance != 3 {
		t.Errorf("All() = %+v, want a single re-added entry a/3", all)
	}
}

func TestEmptyManager(t *testing.T) {
	t.Parallel()
	m := NewManager(4)
	if m.Size() != 0 {
		t.Errorf("Size() = %d, want 0", m.Size())
	}
	if m.All() != nil {
		t.Errorf("All() = %+v, want nil on an empty manager", m.All())
	}
}
