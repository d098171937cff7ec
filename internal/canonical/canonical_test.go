package canonical

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"sorted keys", `{"b":1,"a":2,"c":{"z":true,"y":null}}`, `{"a":2,"b":1,"c":{"y":null,"z":true}}`},
		{"whitespace removed", "{ \"a\" : [ 1 , 2 ,\n 3 ] }", `{"a":[1,2,3]}`},
		{"array order kept", `[3,1,2]`, `[3,1,2]`},
		{"byte order keys", `{"é":1,"z":2,"Z":3,"aa":4,"a":5}`, `{"Z":3,"a":5,"aa":4,"z":2,"é":1}`},
		{"minimal escapes", `"a\"b\\c\/dé<>&"`, `"a\"b\\c/dé<>&"`},
		{"control characters", `"\u0001\b\t\n\f\r\u001f"`, `"\u0001\b\t\n\f\r\u001f"`},
		{"integers", `[1.0,-0,0.0,100,1e2,-5]`, `[1,0,0,100,100,-5]`},
		{"fractions", `[0.5,1.25e1,0.000001,123.456]`, `[0.5,12.5,0.000001,123.456]`},
		{"exponent form", `[1e21,1.5e-7,-2e30]`, `[1e+21,1.5e-7,-2e+30]`},
		{"large plain", `[1e20,123456789012345680000]`, `[100000000000000000000,123456789012345680000]`},
		{"literals", `[true,false,null]`, `[true,false,null]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize([]byte(tc.in))
			if err != nil {
				t.Fatalf("canonicalize: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	a, err := Canonicalize([]byte(`{"step":{"id":"s1","actor":"human:alex"},"change":{"b":{"raw":"x"},"a":{"raw":"y"}}}`))
	if err != nil {
		t.Fatalf("canonicalize a: %v", err)
	}
	b, err := Canonicalize([]byte(`{"change":{"a":{"raw":"y"},"b":{"raw":"x"}},
		"step":{"actor":"human:alex","id":"s1"}}`))
	if err != nil {
		t.Fatalf("canonicalize b: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected identical output:\n%s\n%s", a, b)
	}

	again, err := Canonicalize(a)
	if err != nil || string(again) != string(a) {
		t.Fatalf("canonical form is not a fixed point: %s", again)
	}
}

func TestCanonicalizeErrors(t *testing.T) {
	if _, err := Canonicalize([]byte(`{"a":1,"a":2}`)); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := Canonicalize([]byte(`[1e400]`)); !errors.Is(err, ErrNumber) {
		t.Fatalf("expected ErrNumber, got %v", err)
	}
	if _, err := Canonicalize([]byte(`{} {}`)); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
	if _, err := Canonicalize([]byte(`{"a":`)); err == nil {
		t.Fatalf("expected error for truncated input")
	}
}

func TestMarshal(t *testing.T) {
	got, err := Marshal(map[string]any{"z": "<tag>", "a": []int{2, 1}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(got) != `{"a":[2,1],"z":"<tag>"}` {
		t.Fatalf("unexpected output %s", got)
	}
}
