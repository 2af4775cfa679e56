// Package main - 'fntrace instrument' selection tests.
package main

import (
	"strings"
	"testing"

	"github.com/fntrace/fntrace/cmd/fntrace/instrument"
)

// TestValidatePassName tests transformation selection by stable name.
func TestValidatePassName(t *testing.T) {
	if err := validatePassName(instrument.PassName); err != nil {
		t.Errorf("validatePassName(%q) = %v, want nil", instrument.PassName, err)
	}

	err := validatePassName("inliner")
	if err == nil {
		t.Fatalf("validatePassName should reject an unknown pass")
	}
	if !strings.Contains(err.Error(), "inliner") {
		t.Errorf("Error should name the rejected pass: %v", err)
	}
	if !strings.Contains(err.Error(), instrument.PassName) {
		t.Errorf("Error should list the available pass: %v", err)
	}
}
