package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root, _ := newRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["crawl"])
	require.True(t, names["assemble"])
	require.True(t, names["status"])
}

func TestCrawlRequiresStartURL(t *testing.T) {
	root, _ := newRootCmd()
	root.SetArgs([]string{"crawl"})
	require.Error(t, root.Execute())
}
