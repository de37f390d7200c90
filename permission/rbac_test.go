package permission

import (
	"reflect"
	"testing"
)

func TestHasRole(t *testing.T) {
	cases := []struct {
		name     string
		roles    []string
		required string
		want     bool
	}{
		{"exact", []string{"ADMIN"}, "ADMIN", true},
		{"case insensitive", []string{"admin"}, "ADMIN", true},
		{"trimmed", []string{"  User "}, "user", true},
		{"required trimmed", []string{"USER"}, " USER\t", true},
		{"duplicates", []string{"USER", "user", "USER"}, "USER", true},
		{"missing", []string{"USER"}, "ADMIN", false},
		{"empty roles", nil, "USER", false},
		{"blank required", []string{"USER", ""}, "  ", false},
		{"empty required", []string{""}, "", false},
	}
	for _, tc := range cases {
		if got := HasRole(tc.roles, tc.required); got != tc.want {
			t.Fatalf("%s: HasRole(%v, %q) = %v, want %v", tc.name, tc.roles, tc.required, got, tc.want)
		}
	}
}

func TestHasAnyRole(t *testing.T) {
	roles := []string{"editor", "USER"}
	if !HasAnyRole(roles, "ADMIN", "user") {
		t.Fatal("expected a match on user")
	}
	if HasAnyRole(roles, "ADMIN") {
		t.Fatal("expected no match on admin")
	}
	if HasAnyRole(roles) {
		t.Fatal("no required roles must not match")
	}
}

func TestCanManageUser(t *testing.T) {
	if !CanManageUser("u1", "u2", []string{"Admin"}) {
		t.Fatal("admin should manage other users")
	}
	if !CanManageUser("u1", "u1", []string{"USER"}) {
		t.Fatal("user should manage themselves")
	}
	if CanManageUser("u1", "u2", []string{"USER"}) {
		t.Fatal("user must not manage other users")
	}
	if CanManageUser("u1", "u2", nil) {
		t.Fatal("caller without roles must not manage other users")
	}
}

func TestFunctionsDoNotMutateInput(t *testing.T) {
	roles := []string{" Admin ", "user"}
	snapshot := append([]string(nil), roles...)

	HasRole(roles, "admin")
	HasAnyRole(roles, "x", "USER")
	CanManageUser("a", "b", roles)

	if !reflect.DeepEqual(roles, snapshot) {
		t.Fatalf("roles mutated: %v", roles)
	}
}
