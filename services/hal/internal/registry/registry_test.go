package registry

import "testing"

func TestRegisterAndLookup(t *testing.T) {
	b := BuilderFunc(func(in BuildInput) (BuildOutput, error) { return BuildOutput{Resource: in.DeviceID}, nil })
	RegisterBuilder("registry_test_dev", b)

	got, ok := Lookup("registry_test_dev")
	if !ok {
		t.Fatal("builder not found")
	}
	out, err := got.Build(BuildInput{DeviceID: "x"})
	if err != nil || out.Resource != "x" {
		t.Fatalf("Build = %+v, %v", out, err)
	}
	if _, ok := Lookup("missing"); ok {
		t.Fatal("unexpected builder")
	}
	found := false
	for _, typ := range Types() {
		if typ == "registry_test_dev" {
			found = true
		}
	}
	if !found {
		t.Fatal("Types() misses registered builder")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	b := BuilderFunc(func(BuildInput) (BuildOutput, error) { return BuildOutput{}, nil })
	RegisterBuilder("registry_test_dup", b)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterBuilder("registry_test_dup", b)
}
