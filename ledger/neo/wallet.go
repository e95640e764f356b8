package neo

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/wallet"
)

// LoadAccounts opens a NEP-6 wallet and decrypts every account in it. The
// accounts, in wallet order, are the candidate oracle identities.
func LoadAccounts(path, password string) ([]*wallet.Account, error) {
	w, err := wallet.NewWalletFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	if len(w.Accounts) == 0 {
		return nil, errors.New("wallet has no accounts")
	}
	for _, acc := range w.Accounts {
		if err := acc.Decrypt(password, w.Scrypt); err != nil {
			return nil, fmt.Errorf("decrypt account %s: %w", acc.Address, err)
		}
	}
	return w.Accounts, nil
}
