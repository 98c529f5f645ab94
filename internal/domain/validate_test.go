package domain

import (
	"strings"
	"testing"
)

func TestValidateModelID(t *testing.T) {
	valid := []string{
		"fal-ai/flux",
		"fal-ai/flux/dev",
		"owner/name.v2/variant-1",
		"A1/b2",
	}
	for _, id := range valid {
		if err := ValidateModelID(id); err != nil {
			t.Fatalf("ValidateModelID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		"noslash",
		"/leading",
		"trailing/",
		"owner//name",
		"owner/name/",
		"-owner/name",
		"owner/name with space",
	}
	for _, id := range invalid {
		err := ValidateModelID(id)
		if err == nil {
			t.Fatalf("ValidateModelID(%q) = nil, want error", id)
		}
		if !IsCode(err, CodeInvalidModelID) {
			t.Fatalf("ValidateModelID(%q) code = %q, want %q", id, CodeOf(err), CodeInvalidModelID)
		}
	}
}

func TestValidatePrompt(t *testing.T) {
	if err := ValidatePrompt(strings.Repeat("a", MaxPromptLength)); err != nil {
		t.Fatalf("prompt at limit rejected: %v", err)
	}
	err := ValidatePrompt(strings.Repeat("a", MaxPromptLength+1))
	if !IsCode(err, CodePromptTooLong) {
		t.Fatalf("code = %q, want %q", CodeOf(err), CodePromptTooLong)
	}
}

func TestNormalizeCursor(t *testing.T) {
	if _, err := NormalizeCursor("a", "b"); !IsCode(err, CodeAmbiguousCursor) {
		t.Fatalf("conflicting cursor/page must fail with %s", CodeAmbiguousCursor)
	}
	got, err := NormalizeCursor("a", "a")
	if err != nil || got != "a" {
		t.Fatalf("equal cursor/page = (%q, %v), want (a, nil)", got, err)
	}
	got, err = NormalizeCursor("", "p2")
	if err != nil || got != "p2" {
		t.Fatalf("page alias = (%q, %v), want (p2, nil)", got, err)
	}
	got, err = NormalizeCursor("", "")
	if err != nil || got != "" {
		t.Fatalf("empty = (%q, %v), want (\"\", nil)", got, err)
	}
}

func TestSlugifyModelID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"fal-ai/flux", "fal-ai-flux"},
		{"Owner/Name/Variant", "owner-name-variant"},
		{"a b/c+d", "a-b-c-d"},
		{"fal.ai/mod_el", "fal.ai-mod_el"},
	}
	for _, tc := range tests {
		if got := SlugifyModelID(tc.in); got != tc.want {
			t.Fatalf("SlugifyModelID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToolErrorCodes(t *testing.T) {
	err := Errf(CodeRateLimited, "retry later")
	if !IsCode(err, CodeRateLimited) {
		t.Fatalf("IsCode should match the error's own code")
	}
	if IsCode(err, CodeJobFailed) {
		t.Fatalf("IsCode must not match a different code")
	}
	if CodeOf(nil) != "" {
		t.Fatalf("CodeOf(nil) should be empty")
	}
	if got := err.Error(); got != "RATE_LIMITED: retry later" {
		t.Fatalf("Error() = %q", got)
	}
}
