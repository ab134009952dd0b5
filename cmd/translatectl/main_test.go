package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-translator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-translator/internal/domain"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root, c := newRootCmd()
	defer c.close()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestProvidersList(t *testing.T) {
	out, err := run(t, "", "--store", "memory", "providers")
	require.NoError(t, err)
	for _, p := range domain.AllProviders() {
		assert.Contains(t, out, string(p))
	}
	assert.Contains(t, out, "no key")
}

func TestEnableWithoutKey(t *testing.T) {
	_, err := run(t, "", "--store", "memory", "providers", "enable", "openai")
	require.ErrorIs(t, err, domain.ErrMissingAPIKey)
}

func TestModelsLedgerCommands(t *testing.T) {
	dir := t.TempDir()
	db := dir + "/ctl.db"
	_, err := run(t, "", "--store", "sqlite", "--sqlite-path", db, "models", "add", "groq", "llama-3.1-8b-instant")
	require.NoError(t, err)
	_, err = run(t, "", "--store", "sqlite", "--sqlite-path", db, "models", "add", "groq", "llama-3.3-70b-versatile")
	require.NoError(t, err)

	out, err := run(t, "", "--store", "sqlite", "--sqlite-path", db, "--json", "models", "move", "groq", "1", "0")
	require.NoError(t, err)
	var row providerRow
	require.NoError(t, json.Unmarshal([]byte(out), &row))
	assert.Equal(t, "llama-3.1-8b-instant", row.Current)
	assert.Equal(t, []domain.VerifiedModel{
		{Name: "llama-3.1-8b-instant", Order: 0},
		{Name: "llama-3.3-70b-versatile", Order: 1},
	}, row.Verified)

	_, err = run(t, "", "--store", "sqlite", "--sqlite-path", db, "models", "add", "groq", "llama-3.1-8b-instant")
	require.ErrorIs(t, err, domain.ErrDuplicateModel)

	_, err = run(t, "", "--store", "sqlite", "--sqlite-path", db, "models", "rm", "groq", "x")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestScopeShowWithoutProvider(t *testing.T) {
	_, err := run(t, "", "--store", "memory", "scope", "show", "notes")
	require.ErrorIs(t, err, domain.ErrNoProviderSelected)
	_, err = run(t, "", "--store", "memory", "scope", "reset", "global")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "hunter2\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, httpserver.VerifyPassword("hunter2", strings.TrimSpace(out)))

	_, err = run(t, "", "hash-password")
	require.Error(t, err)
}

func TestFailedCommandLeavesStoreForClose(t *testing.T) {
	db := t.TempDir() + "/ctl.db"
	root, c := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--store", "sqlite", "--sqlite-path", db, "models", "rm", "groq", "x"})
	require.ErrorIs(t, root.Execute(), domain.ErrInvalidArgument)
	require.NotNil(t, c.closeFn, "store stays open until close")

	c.close()
	assert.Nil(t, c.closeFn)
	assert.NotPanics(t, c.close)

	_, err := run(t, "", "--store", "sqlite", "--sqlite-path", db, "models", "add", "groq", "llama-3.1-8b-instant")
	require.NoError(t, err)
}
