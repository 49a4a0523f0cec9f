// Package password generates random passwords for operators and hashes them
// for storage.
package password

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength is the shortest password Generate will produce.
	MinLength = 8
	// DefaultLength is used when the operator gives no usable length.
	DefaultLength = 12
)

// Charset is ASCII letters, digits and punctuation.
const Charset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ErrInvalidLength is returned for lengths below MinLength.
var ErrInvalidLength = fmt.Errorf("password length must be at least %d characters", MinLength)

// Generate returns a password of length characters drawn uniformly from
// Charset using crypto/rand.
func Generate(length int) (string, error) {
	if length < MinLength {
		return "", ErrInvalidLength
	}

	max := big.NewInt(int64(len(Charset)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		sb.WriteByte(Charset[n.Int64()])
	}
	return sb.String(), nil
}

// RequestLength prompts on out and reads one line from in. A blank answer
// or end of input selects def. An answer that is not a number prints a
// warning on errOut and also selects def. Numbers are returned as given,
// so Generate still decides whether they are long enough.
func RequestLength(in io.Reader, out, errOut io.Writer, def int) int {
	fmt.Fprintf(out, "Enter desired password length (default=%d): ", def)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(errOut, "⚠ Could not read input. Falling back to default length: %d\n", def)
		return def
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		fmt.Fprintf(errOut, "⚠ Invalid input. Falling back to default length: %d\n", def)
		return def
	}
	return n
}

// Hash returns the bcrypt hash of password.
func Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches a hash produced by Hash.
func Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
