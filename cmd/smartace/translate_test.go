package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteOutputToFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.c")

	require.NoError(t, writeOutput(p, "struct A;\n"))

	got, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "struct A;\n", string(got))
}

func TestOpenInputFromFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bundle.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"contracts":[]}`), 0o644))

	f, err := openInput(p)
	require.NoError(t, err)
	defer f.Close()

	got := make([]byte, 32)
	n, _ := f.Read(got)
	require.Equal(t, `{"contracts":[]}`, string(got[:n]))
}
