// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "testing"

func TestRebind_Postgres(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM users WHERE email = ?", "SELECT * FROM users WHERE email = $1"},
		{"UPDATE licenses SET hardware_id = ?, updated_at = ? WHERE user_id = ?",
			"UPDATE licenses SET hardware_id = $1, updated_at = $2 WHERE user_id = $3"},
		{"SELECT '?' , ? FROM t", "SELECT '?' , $1 FROM t"},
	}
	for _, c := range cases {
		if got := rebind("postgres", c.in); got != c.want {
			t.Errorf("rebind(postgres, %q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRebind_PassthroughEngines(t *testing.T) {
	query := "SELECT id FROM users WHERE email = ? AND cognito_id = ?"
	for _, kind := range []string{"sqlite", "mysql"} {
		if got := rebind(kind, query); got != query {
			t.Errorf("rebind(%s) must leave '?' placeholders untouched, got %q", kind, got)
		}
	}
}
