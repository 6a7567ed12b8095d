package analyzer

import (
	"testing"

	"github.com/DeusData/declgraph/internal/lang"
)

func TestIsTestFile(t *testing.T) {
	isTest := DefaultTestFilePredicate(lang.Kotlin)
	tests := []struct {
		path string
		want bool
	}{
		{"app/UserTest.kt", true},
		{"app/UserTests.kt", true},
		{"app/UserSpec.kt", true},
		{"app/UserIT.kt", true},
		{"module/src/test/kotlin/app/Fixtures.kt", true},
		{"src/androidTest/kotlin/Screen.kt", true},
		{"app/User.kt", false},
		{"app/Test.kt", false},
		{"app/Latest.kt", false},
		{"src/main/kotlin/app/Contest.kt", false},
		{"src/testing/Helper.kt", false},
	}
	for _, tt := range tests {
		if got := isTest(tt.path); got != tt.want {
			t.Errorf("isTest(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCustomTestFilePredicate(t *testing.T) {
	isTest := TestFilePredicate([]string{"Fake"}, []string{"fixtures"})
	if !isTest("app/UserFake.kt") {
		t.Error("expected suffix match")
	}
	if !isTest("app/fixtures/Data.kt") {
		t.Error("expected dir match")
	}
	if isTest("app/UserTest.kt") {
		t.Error("custom predicate must not use the defaults")
	}
	if DefaultTestFilePredicate(lang.Language("cobol"))("x/FooTest.kt") {
		t.Error("unknown language must never match")
	}
}
