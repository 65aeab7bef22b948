package abort

import "testing"

func TestCatchReturnsFaultFromFatalf(t *testing.T) {
	fault := Catch(func() {
		Fatalf(nil, "bad cookie %d", 7)
	})
	if fault == nil {
		t.Fatal("expected a fault, got nil")
	}
	if fault.Msg != "bad cookie 7" {
		t.Fatalf("unexpected message: %q", fault.Msg)
	}
}

func TestCatchReturnsNilWhenNoPanic(t *testing.T) {
	fault := Catch(func() {})
	if fault != nil {
		t.Fatalf("expected nil fault, got %v", fault)
	}
}

func TestCatchRepanicsNonFault(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected repanic to propagate")
		}
	}()
	Catch(func() {
		panic("not a fault")
	})
}
