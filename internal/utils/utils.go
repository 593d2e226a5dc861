// Package utils holds small helpers shared across the project: generic
// slice processing (Map, Filter) and input validation.
package utils

import (
	"regexp"
	"strings"
)

/* some Functional Programming in Go */
// map
type mapFunc[E any, R any] func(E) R

// Map function definition of a functional programming "function"
func Map[S ~[]E, E any, R any](s S, f mapFunc[E, R]) []R {
	result := make([]R, len(s))
	for i, e := range s {
		result[i] = f(e)
	}

	return result
}

// filter
type keepFunc[E any] func(E) bool

// Filter function definition of a functional programming "function"
func Filter[S ~[]E, E any](s S, f keepFunc[E]) S {
	result := S{}
	for _, v := range s {
		if f(v) {
			result = append(result, v)
		}
	}

	return result
}

// Security related utils

// IsAlphanumericPlus function checks if the given string matches the regex of numericals
// and letter characters plus some special characters given
func IsAlphanumericPlus(s, plus string) bool {
	re := regexp.MustCompile(`^[a-zA-Z0-9` + escapeClass(plus) + `]+$`)

	return re.MatchString(s)
}

// escapeClass escapes the characters that are special inside a regex
// character class.
func escapeClass(chars string) string {
	var b strings.Builder
	for _, c := range chars {
		if strings.ContainsRune(`\]^-[`, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
