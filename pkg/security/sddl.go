//go:build windows
// +build windows

// Package security builds and converts the Windows security descriptor
// the pipe listener attaches to its first instance.
package security

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const cERROR_NONE_MAPPED = syscall.Errno(1332)

// AccountLookupError is returned when a SID lookup by account name fails.
type AccountLookupError struct {
	Name string
	Err  error
}

func (e *AccountLookupError) Error() string {
	if e.Name == "" {
		return "lookup account: empty account name specified"
	}
	var s string
	switch e.Err { //nolint:errorlint // compared against a known sentinel Errno
	case cERROR_NONE_MAPPED:
		s = "not found"
	default:
		s = e.Err.Error()
	}
	return "lookup account " + e.Name + ": " + s
}

// SddlConversionError is returned when an SDDL string cannot be converted
// to or from a binary security descriptor.
type SddlConversionError struct {
	Sddl string
	Err  error
}

func (e *SddlConversionError) Error() string {
	return "convert " + e.Sddl + ": " + e.Err.Error()
}

// LookupSidByName looks up the SID of an account by name, returning it in
// SDDL string form (e.g. "S-1-5-21-...").
func LookupSidByName(name string) (sid string, err error) {
	if name == "" {
		return "", &AccountLookupError{name, cERROR_NONE_MAPPED}
	}

	var sidSize, sidNameUse, refDomainSize uint32
	err = windows.LookupAccountName(nil, name, nil, &sidSize, nil, &refDomainSize, &sidNameUse)
	if err != nil && err != windows.ERROR_INSUFFICIENT_BUFFER { //nolint:errorlint // err is Errno
		return "", &AccountLookupError{name, err}
	}
	sidBuffer := make([]byte, sidSize)
	refDomainBuffer := make([]uint16, refDomainSize)
	err = windows.LookupAccountName(nil, name, (*windows.SID)(unsafe.Pointer(&sidBuffer[0])), &sidSize, &refDomainBuffer[0], &refDomainSize, &sidNameUse)
	if err != nil {
		return "", &AccountLookupError{name, err}
	}
	s, err := (*windows.SID)(unsafe.Pointer(&sidBuffer[0])).String()
	if err != nil {
		return "", &AccountLookupError{name, err}
	}
	return s, nil
}

// SddlToSecurityDescriptor converts an SDDL string (e.g.
// "D:P(A;;GA;;;SY)(A;;GA;;;BA)") into the binary security descriptor form
// consumed by CreateNamedPipe's SECURITY_ATTRIBUTES.
func SddlToSecurityDescriptor(sddl string) ([]byte, error) {
	sd, err := windows.SecurityDescriptorFromString(sddl)
	if err != nil {
		return nil, &SddlConversionError{sddl, err}
	}
	len := sd.Length()
	buf := make([]byte, len)
	copy(buf, (*[0xffff]byte)(unsafe.Pointer(sd))[:len])
	return buf, nil
}

// SecurityDescriptorToSddl converts a binary security descriptor back into
// its SDDL string form. Used only for diagnostics.
func SecurityDescriptorToSddl(sd []byte) (string, error) {
	if len(sd) == 0 {
		return "", &SddlConversionError{"", windows.ERROR_INVALID_PARAMETER}
	}
	s, err := (*windows.SECURITY_DESCRIPTOR)(unsafe.Pointer(&sd[0])).String()
	if err != nil {
		return "", err
	}
	return s, nil
}
