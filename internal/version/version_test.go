package version

import (
	"strings"
	"testing"
)

func TestString_ContainsVersionAndBuildTime(t *testing.T) {
	result := String()
	if !strings.Contains(result, "contexta version") {
		t.Errorf("String() = %q, should contain 'contexta version'", result)
	}
	if !strings.Contains(result, Version) {
		t.Errorf("String() = %q, should contain version %q", result, Version)
	}
	if !strings.Contains(result, BuildTime) {
		t.Errorf("String() = %q, should contain build time %q", result, BuildTime)
	}
}
