package slug

import "testing"

func TestMake(t *testing.T) {
	t.Parallel()

	cases := []struct {
		id   int64
		name string
		want string
	}{
		{12, "Test", "12-test"},
		{1, "The Batman", "1-the-batman"},
		{7, "  Spaces   everywhere  ", "7-spaces-everywhere"},
		{3, "Dune: Part Two!", "3-dune-part-two"},
		{9, "100% Wolf", "9-100-wolf"},
		{5, "___", "5-"},
	}

	for _, tc := range cases {
		if got := Make(tc.id, tc.name); got != tc.want {
			t.Errorf("Make(%d, %q) = %q, want %q", tc.id, tc.name, got, tc.want)
		}
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	t.Parallel()

	s := Slugify("Dune: Part Two!")
	if Slugify(s) != s {
		t.Fatalf("slugify must be idempotent, got %q then %q", s, Slugify(s))
	}
}

func TestPlaceholder(t *testing.T) {
	t.Parallel()

	p := Placeholder("123e4567")
	if !IsPlaceholder(p) {
		t.Fatalf("placeholder %q not recognized", p)
	}
	if IsPlaceholder("12-test") {
		t.Fatal("final slug misdetected as placeholder")
	}
}
