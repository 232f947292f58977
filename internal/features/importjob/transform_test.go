package importjob

import (
	"context"
	"strings"
	"testing"
)

func TestCompileTransformsAndApply(t *testing.T) {
	transforms, err := CompileTransforms(map[string]string{
		"first_name": `text.to_lower(text.trim_space(value))`,
		"weight":     `value + ".0"`,
	})
	if err != nil {
		t.Fatalf("CompileTransforms: %v", err)
	}

	got, err := transforms["first_name"].Apply(context.Background(), "  JANE ")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "jane" {
		t.Errorf("Apply(first_name) = %q, want %q", got, "jane")
	}

	got, err = transforms["weight"].Apply(context.Background(), "72")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "72.0" {
		t.Errorf("Apply(weight, 72) = %q, want %q", got, "72.0")
	}
}

func TestCompileTransformsRejectsBadExpression(t *testing.T) {
	_, err := CompileTransforms(map[string]string{
		"dob": `value +`,
	})
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "dob") {
		t.Errorf("error should name the offending column, got %q", err.Error())
	}
}

func TestTransformReusableAcrossRows(t *testing.T) {
	transforms, err := CompileTransforms(map[string]string{
		"ref": `"P-" + value`,
	})
	if err != nil {
		t.Fatalf("CompileTransforms: %v", err)
	}

	for _, in := range []string{"001", "002", "003"} {
		got, err := transforms["ref"].Apply(context.Background(), in)
		if err != nil {
			t.Fatalf("Apply(%q): %v", in, err)
		}
		if got != "P-"+in {
			t.Errorf("Apply(%q) = %q, want %q", in, got, "P-"+in)
		}
	}
}
