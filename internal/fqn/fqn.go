package fqn

import (
	"path/filepath"
	"strings"
)

// Join returns the qualified name of name inside pkg.
// Examples:
//   - Join("app.service", "UserService") == "app.service.UserService"
//   - Join("", "Main") == "Main"
func Join(pkg, name string) string {
	switch {
	case pkg == "":
		return name
	case name == "":
		return pkg
	}
	return pkg + "." + name
}

// Package returns everything before the last segment of a dotted name.
func Package(qn string) string {
	if i := strings.LastIndexByte(qn, '.'); i >= 0 {
		return qn[:i]
	}
	return ""
}

// Simple returns the last segment of a dotted name.
func Simple(qn string) string {
	if i := strings.LastIndexByte(qn, '.'); i >= 0 {
		return qn[i+1:]
	}
	return qn
}

// Split splits a dotted name into its first segment and the remainder.
func Split(qn string) (head, rest string) {
	if i := strings.IndexByte(qn, '.'); i >= 0 {
		return qn[:i], qn[i+1:]
	}
	return qn, ""
}

// DirPackage returns the package a source file's directory conventionally
// maps to. Examples:
//   - DirPackage("app/service/UserService.kt") == "app.service"
//   - DirPackage("Main.kt") == ""
func DirPackage(relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if dir == "." || dir == "/" || dir == "" {
		return ""
	}
	return strings.ReplaceAll(strings.Trim(dir, "/"), "/", ".")
}

// MatchesDir reports whether pkg agrees with the directory of relPath.
// Source roots such as src/main/kotlin are allowed before the package path,
// and an empty package matches any directory.
func MatchesDir(pkg, relPath string) bool {
	if pkg == "" {
		return true
	}
	dir := DirPackage(relPath)
	return dir == pkg || strings.HasSuffix(dir, "."+pkg)
}
