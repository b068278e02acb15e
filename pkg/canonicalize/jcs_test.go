package canonicalize

import "testing"

func TestJCS_Sorting(t *testing.T) {
	input := map[string]interface{}{"c": 3, "a": 1, "b": 2}
	expected := `{"a":1,"b":2,"c":3}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("expected %s, got %s", expected, string(b))
	}
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]interface{}{
		"z": map[string]interface{}{"y": "foo", "x": "bar"},
		"a": 1,
	}
	expected := `{"a":1,"z":{"x":"bar","y":"foo"}}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("expected %s, got %s", expected, string(b))
	}
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{"html": "<script>alert('xss')</script> &"}
	expected := `{"html":"<script>alert('xss')</script> &"}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("expected %s, got %s", expected, string(b))
	}
}

func TestJCS_Deterministic(t *testing.T) {
	input := map[string]interface{}{"b": 1, "a": []interface{}{1, 2, 3}}
	a, err := JCS(input)
	if err != nil {
		t.Fatal(err)
	}
	b, err := JCS(input)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("JCS is not deterministic: %s != %s", a, b)
	}
}

func TestValue_RejectsNonIntegerFloat(t *testing.T) {
	_, err := FromAny(3.14)
	if err == nil {
		t.Fatal("expected error for non-integer float")
	}
}

func TestValue_AcceptsIntegerValuedFloat(t *testing.T) {
	v, err := FromAny(float64(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind() != KindInt {
		t.Fatalf("expected KindInt, got %v", v.Kind())
	}
}

func TestValue_RoundTripMap(t *testing.T) {
	v := Map(map[string]Value{
		"name":  String("alice"),
		"count": Int(3),
		"tags":  List(String("a"), String("b")),
		"nil":   Null(),
	})
	b, err := v.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	var v2 Value
	if err := v2.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	b2, err := v2.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != string(b2) {
		t.Errorf("round trip mismatch: %s != %s", b, b2)
	}
}
