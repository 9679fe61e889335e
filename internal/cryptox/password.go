// Package cryptox implements the credential codec: one-way password digests
// keyed by a process-wide secret.
//
// Three schemes are available. "hmac-sha256" is deterministic (same password,
// same digest) and needs no per-account salt. "argon2id" and "bcrypt" mix a
// random per-account salt into a slow hash. Every scheme first keys the
// password with the process secret, so a leaked digest table is useless
// without it.
//
// Digests are self-describing, which lets a Codec verify digests written by
// any scheme while hashing new passwords with the configured one.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/accounts/internal/common"
)

const (
	SchemeHMAC   = "hmac-sha256"
	SchemeArgon2 = "argon2id"
	SchemeBcrypt = "bcrypt"
)

var (
	ErrUnknownScheme = errors.New("unknown password scheme")
	ErrBadDigest     = errors.New("malformed password digest")
)

// Hasher produces and checks digests of one scheme.
type Hasher interface {
	Hash(password []byte) (string, error)
	Verify(digest string, password []byte) (bool, error)
	// Owns reports whether digest was produced by this scheme.
	Owns(digest string) bool
}

// pepper keys the plaintext with the process secret.
func pepper(secret, password []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write(password)
	return m.Sum(nil)
}

// HMACHasher is the deterministic scheme: digest = HMAC-SHA256(secret, password).
type HMACHasher struct {
	secret []byte
}

func NewHMACHasher(secret []byte) *HMACHasher {
	return &HMACHasher{secret: secret}
}

const hmacPrefix = "$" + SchemeHMAC + "$"

func (h *HMACHasher) Hash(password []byte) (string, error) {
	return hmacPrefix + hex.EncodeToString(pepper(h.secret, password)), nil
}

func (h *HMACHasher) Verify(digest string, password []byte) (bool, error) {
	if !h.Owns(digest) {
		return false, ErrBadDigest
	}
	want, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(want)) == 1, nil
}

func (h *HMACHasher) Owns(digest string) bool {
	return strings.HasPrefix(digest, hmacPrefix)
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultArgon2Params match the RFC 9106 second recommended option.
var DefaultArgon2Params = Argon2Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}

type Argon2Hasher struct {
	secret []byte
	params Argon2Params
}

func NewArgon2Hasher(secret []byte, params Argon2Params) *Argon2Hasher {
	return &Argon2Hasher{secret: secret, params: params}
}

const argon2Prefix = "$" + SchemeArgon2 + "$"

func (h *Argon2Hasher) Hash(password []byte) (string, error) {
	salt := common.GenerateRandByteArray(h.params.SaltLen)
	key := argon2.IDKey(pepper(h.secret, password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(digest string, password []byte) (bool, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != SchemeArgon2 {
		return false, ErrBadDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrBadDigest
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return false, ErrBadDigest
	}
	if p.Time == 0 || p.Threads == 0 {
		return false, ErrBadDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrBadDigest
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrBadDigest
	}

	got := argon2.IDKey(pepper(h.secret, password), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func (h *Argon2Hasher) Owns(digest string) bool {
	return strings.HasPrefix(digest, argon2Prefix)
}

// BcryptHasher runs bcrypt over the hex of the peppered password, which keeps
// the input under bcrypt's 72-byte limit.
type BcryptHasher struct {
	secret []byte
	cost   int
}

func NewBcryptHasher(secret []byte, cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{secret: secret, cost: cost}
}

func (h *BcryptHasher) input(password []byte) []byte {
	return []byte(hex.EncodeToString(pepper(h.secret, password)))
}

func (h *BcryptHasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(h.input(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(digest string, password []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), h.input(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrBadDigest
	}
}

func (h *BcryptHasher) Owns(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}

// Codec hashes with the configured scheme and verifies digests of any scheme.
type Codec struct {
	primary Hasher
	all     []Hasher
}

// NewCodec builds a Codec whose new digests use scheme.
func NewCodec(scheme string, secret []byte) (*Codec, error) {
	hm := NewHMACHasher(secret)
	ar := NewArgon2Hasher(secret, DefaultArgon2Params)
	bc := NewBcryptHasher(secret, bcrypt.DefaultCost)

	c := &Codec{all: []Hasher{hm, ar, bc}}
	switch scheme {
	case SchemeHMAC:
		c.primary = hm
	case SchemeArgon2, "":
		c.primary = ar
	case SchemeBcrypt:
		c.primary = bc
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return c, nil
}

// Hash returns the digest to persist for password.
func (c *Codec) Hash(password string) (string, error) {
	return c.primary.Hash([]byte(password))
}

// Verify reports whether password matches digest. A digest of no known
// scheme yields ErrBadDigest.
func (c *Codec) Verify(digest, password string) (bool, error) {
	for _, h := range c.all {
		if h.Owns(digest) {
			return h.Verify(digest, []byte(password))
		}
	}
	return false, ErrBadDigest
}

// Deterministic reports whether equal passwords map to equal digests under
// the primary scheme.
func (c *Codec) Deterministic() bool {
	_, ok := c.primary.(*HMACHasher)
	return ok
}
