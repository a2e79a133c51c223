package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dinner = `{
  "members": ["carol", "bob", "alice", "dave"],
  "expenses": [
    {"id": "e1", "payer": "alice", "amount": 90, "participants": ["alice", "bob", "carol"]},
    {"id": "e2", "payer": "bob", "amount": 30, "participants": ["alice", "bob", "carol"]}
  ]
}`

func TestRunJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-json"}, strings.NewReader(dinner), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var out output
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))

	assert.Equal(t, []outputBalance{
		{Member: "alice", Paid: 90, Owed: 40, Net: 50},
		{Member: "bob", Paid: 30, Owed: 40, Net: -10},
		{Member: "carol", Paid: 0, Owed: 40, Net: -40},
		{Member: "dave", Paid: 0, Owed: 0, Net: 0},
	}, out.Balances)
	assert.Equal(t, []outputSettlement{
		{From: "carol", To: "alice", Amount: 40},
		{From: "bob", To: "alice", Amount: 10},
	}, out.Settlements)
}

func TestRunTextFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.json")
	require.NoError(t, os.WriteFile(path, []byte(dinner), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-f", path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	text := stdout.String()
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.True(t, strings.HasPrefix(lines[0], "MEMBER"))
	assert.True(t, strings.HasPrefix(lines[1], "alice"))
	assert.Contains(t, lines[1], "50.00")
	assert.Contains(t, lines[3], "-40.00")
	assert.True(t, strings.HasPrefix(lines[4], "dave"))
	assert.Contains(t, text, "carol pays alice 40.00\n")
	assert.Contains(t, text, "bob pays alice 10.00\n")
}

func TestRunNothingToSettle(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(`{"members": ["alice"], "expenses": []}`), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Everybody is settled up.")
}

func TestRunInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"malformed json", `{"members": [`, "failed to decode input"},
		{"unknown field", `{"people": []}`, "unknown field"},
		{"negative amount", `{"expenses": [{"id": "x", "payer": "a", "amount": -1, "participants": ["b"]}]}`, "expense x"},
		{"no participants", `{"expenses": [{"payer": "a", "amount": 5, "participants": []}]}`, "expense 1"},
		{"no payer", `{"expenses": [{"amount": 5, "participants": ["a"]}]}`, "payer is required"},
		{"empty member", `{"members": [""]}`, "member identity cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(nil, strings.NewReader(tt.input), &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout.String())
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

func TestRunMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-f", filepath.Join(t.TempDir(), "missing.json")}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Failed to open input")
}
