package utils

import (
	"crypto/rand"
	"math/big"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // omit easily confused chars

// GenerateCode returns n random characters from codeAlphabet.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		n = 8
	}
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		idxBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idxBig.Int64()]
	}
	return string(b), nil
}

// NewAccessCode generates an evaluator access code and its bcrypt hash.
func NewAccessCode(n int) (code, hash string, err error) {
	code, err = GenerateCode(n)
	if err != nil {
		return "", "", err
	}
	hash, err = HashPassword(code)
	if err != nil {
		return "", "", err
	}
	return code, hash, nil
}
