package secret

import "testing"

func TestRegistry_RegisterCreate(t *testing.T) {
	r := NewRegistry()

	err := r.Register("static", func(cfg map[string]any) (Source, error) {
		return staticSource{name: "static"}, nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	src, err := r.Create("static", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if src.Name() != "static" {
		t.Errorf("Name() = %q, want %q", src.Name(), "static")
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()
	factory := func(cfg map[string]any) (Source, error) { return EnvSource{}, nil }

	if err := r.Register("env", factory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("env", factory); err == nil {
		t.Error("duplicate registration succeeded")
	}
}

func TestRegistry_CreateUnknown(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Create("missing", nil); err == nil {
		t.Error("Create() succeeded for an unregistered source")
	}
}

func TestDefaultRegistry_HasEnv(t *testing.T) {
	for _, name := range DefaultRegistry.List() {
		if name == "env" {
			return
		}
	}
	t.Error("default registry missing the env source")
}
