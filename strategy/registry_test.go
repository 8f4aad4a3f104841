package strategy

import "testing"

func TestRegistry_BuildUnknownName(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Build("nope", nil); err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	err := r.Register("stub", func(params map[string]ParamValue) (Strategy, error) {
		return &stubStrategy{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Build("stub", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != "stub" {
		t.Fatalf("ID() = %q", got.ID())
	}
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := NewRegistry()
	factory := func(params map[string]ParamValue) (Strategy, error) { return &stubStrategy{}, nil }
	if err := r.Register("stub", factory); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("stub", factory); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	factory := func(params map[string]ParamValue) (Strategy, error) { return &stubStrategy{}, nil }
	r.Register("zeta", factory)
	r.Register("alpha", factory)

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("got %v", names)
	}
}
