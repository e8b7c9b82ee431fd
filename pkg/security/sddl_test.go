//go:build windows
// +build windows

package security

import "testing"

func TestLookupEmptyNameFails(t *testing.T) {
	_, err := LookupSidByName("")
	aerr, ok := err.(*AccountLookupError)
	if !ok || aerr.Err != cERROR_NONE_MAPPED {
		t.Fatalf("expected AccountLookupError with ERROR_NONE_MAPPED, got %v", err)
	}
}

func TestLookupInvalidNameFails(t *testing.T) {
	_, err := LookupSidByName(`.\nonexistent-account-for-substrate-tests`)
	if _, ok := err.(*AccountLookupError); !ok {
		t.Fatalf("expected AccountLookupError, got %v", err)
	}
}

func TestSddlRoundTrip(t *testing.T) {
	sddl := BuildPipeSDDL("")
	sd, err := SddlToSecurityDescriptor(sddl)
	if err != nil {
		t.Fatalf("SddlToSecurityDescriptor: %v", err)
	}
	if len(sd) == 0 {
		t.Fatalf("expected a non-empty security descriptor")
	}

	got, err := SecurityDescriptorToSddl(sd)
	if err != nil {
		t.Fatalf("SecurityDescriptorToSddl: %v", err)
	}
	if got == "" {
		t.Fatalf("expected a non-empty round-tripped SDDL string")
	}
}

func TestBuildPipeSDDLIncludesWellKnownSIDs(t *testing.T) {
	sddl := BuildPipeSDDL("")
	for _, want := range []string{"SY", "BA", "IU"} {
		if !contains(sddl, want) {
			t.Errorf("expected SDDL %q to contain SID abbreviation %q", sddl, want)
		}
	}
}

func TestBuildPipeSDDLAppendsExtraSID(t *testing.T) {
	sddl := BuildPipeSDDL("S-1-5-21-1-2-3-1000")
	if !contains(sddl, "S-1-5-21-1-2-3-1000") {
		t.Errorf("expected SDDL %q to contain the extra SID", sddl)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
