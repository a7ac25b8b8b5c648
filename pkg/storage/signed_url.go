package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Link errors.
var (
	ErrInvalidLink = errors.New("invalid download link")
	ErrLinkExpired = errors.New("download link expired")
)

// Link is the decoded content of a signed download token.
type Link struct {
	Token     string
	OwnerID   string
	Path      string
	ExpiresAt time.Time
}

// LinkSigner issues HMAC-signed, expiring tokens for files kept in LocalStorage.
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkSigner constructs a signer with the provided secret and TTL.
func NewLinkSigner(secret string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token granting ownerID access to relPath until the TTL elapses.
func (s *LinkSigner) Sign(ownerID, relPath string) (Link, error) {
	if ownerID == "" || relPath == "" {
		return Link{}, fmt.Errorf("owner and path required")
	}
	if len(s.secret) == 0 {
		return Link{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	payload := strings.Join([]string{
		ownerID,
		strconv.FormatInt(expiresAt.Unix(), 10),
		relPath,
	}, "\n")
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	token := encoded + "." + s.signature(encoded)
	return Link{Token: token, OwnerID: ownerID, Path: relPath, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature and expiry of token.
func (s *LinkSigner) Verify(token string) (Link, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return Link{}, ErrInvalidLink
	}
	if !hmac.Equal([]byte(s.signature(encoded)), []byte(signature)) {
		return Link{}, ErrInvalidLink
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Link{}, ErrInvalidLink
	}
	parts := strings.SplitN(string(raw), "\n", 3)
	if len(parts) != 3 {
		return Link{}, ErrInvalidLink
	}
	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Link{}, ErrInvalidLink
	}
	link := Link{Token: token, OwnerID: parts[0], Path: parts[2], ExpiresAt: time.Unix(unix, 0)}
	if s.now().After(link.ExpiresAt) {
		return link, ErrLinkExpired
	}
	return link, nil
}

func (s *LinkSigner) signature(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
