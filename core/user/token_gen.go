package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// Password reset tokens are self-contained: an HMAC over the user's ID,
// password hash and last login plus a day-granular timestamp. A token stops
// verifying as soon as the user logs in or the password changes.

var (
	salt    = []byte("school-trainer.core.user.token_gen")
	b32     = base32.StdEncoding.WithPadding(base32.NoPadding)
	NowFunc = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// decodeUID base64 decodes given UID
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakeToken generates a password reset token for a given User.
func MakeToken(usr User) (string, error) {
	return makeTokenAt(usr, daysSince2001(NowFunc()))
}

// verifyToken checks a password reset token against the User's current state.
func verifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}
	ts, err := decodeTimestamp(parts[0])
	if err != nil {
		return errInvalidToken
	}

	// recompute; any drift in user state or tampering changes the signature
	expected, err := makeTokenAt(usr, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return errInvalidToken
	}

	maxDays := int(core.Conf.PasswordResetTimeoutDelta / (24 * time.Hour))
	if daysSince2001(time.Now())-ts > maxDays {
		return errTokenExpired
	}
	return nil
}

func makeTokenAt(usr User, ts int) (string, error) {
	sig, err := sign(tokenPayload(usr, ts))
	if err != nil {
		return "", err
	}
	tsB32 := b32.EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, sig), nil
}

func decodeTimestamp(tsB32 string) (int, error) {
	data, err := b32.DecodeString(tsB32)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

func daysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(payload []byte) (string, error) {
	key := sha256.Sum256(append(salt, core.Conf.SecretKey...))
	mac := hmac.New(sha256.New, key[:])
	if _, err := mac.Write(payload); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func tokenPayload(usr User, ts int) []byte {
	var payload bytes.Buffer
	payload.WriteString(usr.ID)
	payload.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		payload.WriteString(usr.LastLogin.String())
	}
	payload.WriteString(strconv.Itoa(ts))
	return payload.Bytes()
}
