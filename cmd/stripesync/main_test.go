package main

import (
	"path/filepath"
	"testing"

	"github.com/railzwaylabs/stripesync/internal/payment/adapters/stripe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	require.NotNil(t, root.PersistentFlags().Lookup("config"))

	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"migrate-legacy-billing"},
		{"sync", "customers"},
		{"sync", "products"},
		{"sync", "prices"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	subs, _, err := root.Find([]string{"sync", "subscriptions"})
	require.NoError(t, err)
	for _, flag := range []string{"limit", "starting-after", "from-file", "status", "skip-missing-users"} {
		assert.NotNil(t, subs.Flags().Lookup(flag), flag)
	}
	assert.Equal(t, "100", subs.Flags().Lookup("limit").DefValue)
}

func TestReadPage(t *testing.T) {
	page, err := readPage("", stripe.DecodeCustomerList)
	require.NoError(t, err)
	assert.Nil(t, page)

	page, err = readPage(filepath.Join("..", "..", "internal", "testutil", "testdata", "customer_list.json"), stripe.DecodeCustomerList)
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)

	_, err = readPage(filepath.Join(t.TempDir(), "missing.json"), stripe.DecodeCustomerList)
	assert.Error(t, err)
}
