package analyzer

import (
	"path/filepath"
	"strings"

	"github.com/DeusData/declgraph/internal/lang"
)

// testFilePattern defines how to detect test files.
type testFilePattern struct {
	// stripExtSuffixes: suffixes checked on the base name after stripping ext (e.g. "Test", "Spec")
	stripExtSuffixes []string
	// testDirs: directory patterns that indicate test files
	testDirs []string
}

// DefaultTestFilePredicate returns the test-file predicate for a language,
// built from the naming conventions of its LanguageSpec. Unknown languages
// get a predicate that never matches.
func DefaultTestFilePredicate(language lang.Language) func(path string) bool {
	spec := lang.ForLanguage(language)
	if spec == nil {
		return func(string) bool { return false }
	}
	return TestFilePredicate(spec.TestFileSuffixes, spec.TestDirs)
}

// TestFilePredicate builds a predicate from base-name suffixes (checked
// without the extension) and directory patterns.
func TestFilePredicate(suffixes, dirs []string) func(path string) bool {
	p := testFilePattern{stripExtSuffixes: suffixes, testDirs: dirs}
	return p.isTestFile
}

// isTestFile returns true if the file path indicates a test file.
func (p testFilePattern) isTestFile(relPath string) bool {
	base := filepath.Base(relPath)
	if len(p.stripExtSuffixes) > 0 {
		noExt := strings.TrimSuffix(base, filepath.Ext(base))
		for _, s := range p.stripExtSuffixes {
			if s != "" && noExt != s && strings.HasSuffix(noExt, s) {
				return true
			}
		}
	}
	if len(p.testDirs) > 0 {
		return containsTestDir(filepath.Dir(relPath), p.testDirs...)
	}
	return false
}

// containsTestDir returns true if any segment run of dir matches one of the patterns.
func containsTestDir(dir string, patterns ...string) bool {
	normalised := "/" + strings.Trim(filepath.ToSlash(dir), "/") + "/"
	for _, p := range patterns {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if p != "" && strings.Contains(normalised, "/"+p+"/") {
			return true
		}
	}
	return false
}
