package neo

import (
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWallet(t *testing.T, password string, n int) (string, []string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oracles.json")
	w, err := wallet.NewWallet(path)
	require.NoError(t, err)
	var addrs []string
	for range n {
		acc, err := wallet.NewAccount()
		require.NoError(t, err)
		require.NoError(t, acc.Encrypt(password, w.Scrypt))
		w.AddAccount(acc)
		addrs = append(addrs, acc.Address)
	}
	require.NoError(t, w.Save())
	return path, addrs
}

func TestLoadAccounts(t *testing.T) {
	path, addrs := writeWallet(t, "pass", 2)

	accs, err := LoadAccounts(path, "pass")
	require.NoError(t, err)
	require.Len(t, accs, 2)
	for i, acc := range accs {
		assert.Equal(t, addrs[i], acc.Address)
		assert.True(t, acc.CanSign())
	}
}

func TestLoadAccounts_Errors(t *testing.T) {
	path, _ := writeWallet(t, "pass", 1)
	_, err := LoadAccounts(path, "wrong")
	assert.Error(t, err)

	empty, _ := writeWallet(t, "pass", 0)
	_, err = LoadAccounts(empty, "pass")
	assert.Error(t, err)

	_, err = LoadAccounts(filepath.Join(t.TempDir(), "missing.json"), "pass")
	assert.Error(t, err)
}
