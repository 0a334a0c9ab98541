package core

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	temporaryPasswordMin = 100000
	temporaryPasswordMax = 999999
)

// GenerateTemporaryPassword draws a uniform integer in [100000, 999999] from
// crypto/rand and returns it as six ASCII digits.
func GenerateTemporaryPassword() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(temporaryPasswordMax-temporaryPasswordMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+temporaryPasswordMin, 10), nil
}
