package validation

import "testing"

type probe struct {
	Path string `validate:"required,fepath"`
}

func TestFEPath(t *testing.T) {
	t.Parallel()

	validate := New()

	valid := []string{"activate", "auth/activate", "reset-password", "a_b/c-d/e"}
	for _, p := range valid {
		if err := validate.Struct(probe{Path: p}); err != nil {
			t.Errorf("path %q must be accepted: %v", p, err)
		}
	}

	invalid := []string{"", "activate?x=1", "a b", "https://evil.example", "path#frag", "p%20x"}
	for _, p := range invalid {
		if err := validate.Struct(probe{Path: p}); err == nil {
			t.Errorf("path %q must be rejected", p)
		}
	}
}
