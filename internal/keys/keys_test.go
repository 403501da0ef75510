package keys

import (
	"math/big"
	"strings"
	"testing"
	"time"
)

type user struct {
	ID   int
	Name string
	note string
}

type opaque struct {
	n    int
	tags []string
}

func TestSerializeDeterministic(t *testing.T) {
	args := []any{
		map[string]any{"b": 2, "a": []string{"x", "y"}, "c": map[int]bool{3: true, 1: false}},
		&user{ID: 1, Name: "n"},
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		[]byte{0xca, 0xfe},
		nil,
	}
	first := Serialize("search", args)
	for i := 0; i < 50; i++ {
		if got := Serialize("search", args); got != first {
			t.Fatalf("non-deterministic output:\n%s\n%s", first, got)
		}
	}
}

func TestSerializeDistinguishes(t *testing.T) {
	cases := []struct {
		name string
		a, b []any
	}{
		{"int vs string", []any{1}, []any{"1"}},
		{"split strings", []any{[]string{"a,b"}}, []any{[]string{"a", "b"}}},
		{"arg boundary", []any{"ab", "c"}, []any{"a", "bc"}},
		{"nil vs empty", []any{nil}, []any{""}},
		{"bool", []any{true}, []any{false}},
		{"map values", []any{map[string]int{"a": 1}}, []any{map[string]int{"a": 2}}},
		{"struct fields", []any{user{ID: 1}}, []any{user{ID: 2}}},
		{"times", []any{time.Unix(1, 0).UTC()}, []any{time.Unix(2, 0).UTC()}},
		{"big ints", []any{big.NewInt(1)}, []any{big.NewInt(2)}},
		{"big int values", []any{*big.NewInt(1)}, []any{*big.NewInt(2)}},
		{"opaque structs", []any{opaque{n: 1}}, []any{opaque{n: 2}}},
		{"opaque nested", []any{opaque{tags: []string{"a"}}}, []any{opaque{tags: []string{"b"}}}},
	}
	for _, tc := range cases {
		if Serialize("m", tc.a) == Serialize("m", tc.b) {
			t.Fatalf("%s: expected different renderings", tc.name)
		}
	}
}

func TestSerializeMethodMatters(t *testing.T) {
	if Serialize("foo", []any{"x"}) == Serialize("bar", []any{"x"}) {
		t.Fatalf("method must be part of the rendering")
	}
}

func TestSerializeIgnoresUnexportedFields(t *testing.T) {
	a := Serialize("m", []any{user{ID: 1, note: "x"}})
	b := Serialize("m", []any{user{ID: 1, note: "y"}})
	if a != b {
		t.Fatalf("unexported fields should not affect the rendering")
	}
}

func TestSerializeCyclesTerminate(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_ = Serialize("m", []any{m})
}

func TestSerializePointerMarshaler(t *testing.T) {
	got := Serialize("m", []any{big.NewInt(42)})
	if !strings.Contains(got, "x:big.Int:42") {
		t.Fatalf("big.Int should render through MarshalText, got %q", got)
	}
	if Serialize("m", []any{big.NewInt(42)}) != Serialize("m", []any{*big.NewInt(42)}) {
		t.Fatalf("pointer and value forms of equal big.Ints should match")
	}
}
