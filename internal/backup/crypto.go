package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

var ErrTooShort = errors.New("encrypted backup too short")

// GenerateSalt returns 16 cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt reads all of src and writes
// [16-byte salt][12-byte nonce][AES-256-GCM ciphertext] to dst, using a
// fresh salt for every call. It returns the bytes written.
func Encrypt(dst io.Writer, src io.Reader, passphrase string) (int64, error) {
	plaintext, err := io.ReadAll(src)
	if err != nil {
		return 0, fmt.Errorf("read source: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return 0, err
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return 0, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return 0, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	n, err := dst.Write(out)
	if err != nil {
		return int64(n), fmt.Errorf("write encrypted backup: %w", err)
	}
	return int64(n), nil
}

// Decrypt reverses Encrypt. A wrong passphrase or altered input fails
// authentication and writes nothing.
func Decrypt(dst io.Writer, src io.Reader, passphrase string) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read encrypted backup: %w", err)
	}
	if len(data) < saltSize+nonceSize {
		return ErrTooShort
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}

	if _, err := dst.Write(plaintext); err != nil {
		return fmt.Errorf("write decrypted backup: %w", err)
	}
	return nil
}
