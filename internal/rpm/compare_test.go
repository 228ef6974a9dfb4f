package rpm

import (
	"errors"
	"testing"
)

func TestCompareFields(t *testing.T) {
	cases := []struct {
		a, b string
		want Result
	}{
		{"1.0", "1.0", Equal},
		{"1.0", "2.0", Older},
		{"2.0", "1.0", Newer},
		{"1.0.0", "1.0", Newer},
		{"1.0", "1.0.0", Older},
		{"2.0.1", "2.0.1a", Older},
		{"5.16.0", "5.16.1", Older},
		{"0.4.1", "0.4.1", Equal},
		{"0.0.1", "00.00.01", Equal},
		{"10", "9", Newer},
		{"1a", "1b", Older},
		{"a", "1", Older},
		{"1", "a", Newer},
		{"1.05", "1.5", Equal},
		{"fc4", "fc.4", Equal},
		{"2a", "2.0", Older},
		{"1.0~rc1", "1.0", Older},
		{"1.0", "1.0~rc1", Newer},
		{"1.0~rc1", "1.0~rc1", Equal},
		{"1.0~rc1", "1.0~rc2", Older},
		{"1.0~rc1~git123", "1.0~rc1", Older},
		{"1.0^", "1.0", Newer},
		{"1.0", "1.0^", Older},
		{"1.0^git1", "1.0", Newer},
		{"1.0^git1", "1.01", Older},
		{"1.0^git1", "1.0^git2", Older},
		{"1.0^20200101", "1.0.1", Older},
	}

	for _, tc := range cases {
		if got := CompareFields(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareFields(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareFieldsReflexive(t *testing.T) {
	for _, v := range []string{"1", "1.0", "1.0~rc1", "1.0^git", "2.3.4-5", "a.b.c", "0"} {
		if got := CompareFields(v, v); got != Equal {
			t.Errorf("CompareFields(%q, %q) = %v, want Equal", v, v, got)
		}
	}
}

func TestCompareFieldsAntisymmetric(t *testing.T) {
	pairs := [][2]string{
		{"1.0", "2.0"},
		{"1.0.0", "1.0"},
		{"1.0~rc1", "1.0"},
		{"1.0^git1", "1.0"},
		{"10", "9"},
		{"1a", "1b"},
		{"a", "1"},
		{"1.5", "1.05"},
	}

	for _, p := range pairs {
		fwd := CompareFields(p[0], p[1])
		rev := CompareFields(p[1], p[0])
		if fwd == Equal != (rev == Equal) || (fwd == Newer && rev != Older) || (fwd == Older && rev != Newer) {
			t.Errorf("CompareFields(%q, %q) = %v but reverse = %v", p[0], p[1], fwd, rev)
		}
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b Label
		want Result
	}{
		{
			name: "equal labels",
			a:    Label{"", "1.0", "1.1"},
			b:    Label{"", "1.0", "1.1"},
			want: Equal,
		},
		{
			name: "epoch wins over version",
			a:    Label{"1", "1.0", "1"},
			b:    Label{"", "9.0", "1"},
			want: Newer,
		},
		{
			name: "version decides before release",
			a:    Label{"", "1.1", "1"},
			b:    Label{"", "1.0", "99"},
			want: Newer,
		},
		{
			name: "release breaks version tie",
			a:    Label{"", "1.0", "1.2"},
			b:    Label{"", "1.0", "1.10"},
			want: Older,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.a, tc.b); got != tc.want {
				t.Errorf("Compare(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestSatisfies(t *testing.T) {
	cases := []struct {
		current, expected, op string
		want                  bool
	}{
		{"1.0", "1.0", ">=", true},
		{"0.9", "1.0", ">=", false},
		{"1.0", "1.0", "==", true},
		{"1.0.1", "1.0", "==", false},
		{"0.9", "1.0", "<", true},
		{"1.1", "1.0", ">", true},
		{"1.0", "1.0", ">", false},
		{"1.0", "1.1", "<=", true},
	}

	for _, tc := range cases {
		got, err := Satisfies(tc.current, tc.expected, tc.op)
		if err != nil {
			t.Fatalf("Satisfies(%q, %q, %q): %v", tc.current, tc.expected, tc.op, err)
		}
		if got != tc.want {
			t.Errorf("Satisfies(%q, %q, %q) = %v, want %v", tc.current, tc.expected, tc.op, got, tc.want)
		}
	}
}

func TestSatisfiesInvalidOperator(t *testing.T) {
	_, err := Satisfies("1.0", "1.0", "=>")
	var invalid *InvalidComparatorError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidComparatorError, got %v", err)
	}
	if invalid.Op != "=>" {
		t.Errorf("expected offending symbol %q, got %q", "=>", invalid.Op)
	}
}
