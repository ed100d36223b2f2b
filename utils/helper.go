package utils

import (
	"regexp"
	"strings"
)

// EmailPattern matches an email-shaped token anywhere inside free text.
// Deliverability is never checked.
var EmailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var exactEmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return exactEmailPattern.MatchString(email)
}

// FindEmail returns the first email-shaped token in text, lower-cased.
func FindEmail(text string) (string, bool) {
	match := EmailPattern.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ToLower(match), true
}

func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UniqueSlice keeps the first occurrence of every element, preserving order.
func UniqueSlice[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
