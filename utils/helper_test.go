package utils

import (
	"errors"
	"reflect"
	"testing"
)

func TestFindEmail(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"contact: Nimal.Perera@Telco.lk for install", "nimal.perera@telco.lk", true},
		{"call 0771234567", "", false},
		{"two: a@x.com and b@y.com", "a@x.com", true},
		{"broken@host", "", false},
	}
	for _, tc := range cases {
		got, ok := FindEmail(tc.text)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("FindEmail(%q) = %q, %v; want %q, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
	if IsValidEmail("see a@x.com") || !IsValidEmail("a@x.com") {
		t.Fatalf("IsValidEmail must match whole strings only")
	}
}

func TestSplitAndUnique(t *testing.T) {
	if got := SplitAndTrim(" a, ,b ,c"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("SplitAndTrim: %v", got)
	}
	if SplitAndTrim("  ") != nil {
		t.Fatalf("blank input must yield nil")
	}
	if got := UniqueSlice([]string{"Fiber", "IPTV", "Fiber"}); !reflect.DeepEqual(got, []string{"Fiber", "IPTV"}) {
		t.Fatalf("UniqueSlice: %v", got)
	}
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Email string `validate:"omitempty,email"`
		State string `validate:"oneof=open closed"`
	}
	err := ValidateStruct(input{Email: "nope", State: "open"})
	if !errors.Is(err, ErrInvalidInput) || err.Error() != "invalid input (Email:email)" {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateStruct(input{State: "closed"}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}
