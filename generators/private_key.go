package generators

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fdymylja/utils"
)

// PrivateKeys generates n *ecdsa.PrivateKeys
func PrivateKeys(n int) (keys []*ecdsa.PrivateKey, err error) {
	defer utils.WrapErrorP(&err)
	keys = make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		keys[i], err = crypto.GenerateKey()
		if err != nil {
			return
		}
	}
	return
}

// MustPrivateKey generates a single key and panics if it can't
func MustPrivateKey() *ecdsa.PrivateKey {
	keys, err := PrivateKeys(1)
	if err != nil {
		panic(err)
	}
	return keys[0]
}
