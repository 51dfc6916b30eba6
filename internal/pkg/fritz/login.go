package fritz

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/encoding/unicode"
)

type sessionInfo struct {
	XMLName   xml.Name `xml:"SessionInfo"`
	SID       string   `xml:"SID"`
	Challenge string   `xml:"Challenge"`
	BlockTime int      `xml:"BlockTime"`
}

// Login opens a session using the challenge-response scheme of login_sid.lua.
func (c *Client) Login(ctx context.Context) error {
	data, err := c.get(ctx, loginPath, url.Values{"version": {"2"}})
	if err != nil {
		return err
	}
	info, err := parseSessionInfo(data)
	if err != nil {
		return err
	}

	if info.BlockTime > 0 {
		c.logger.Warn("login blocked by hub", zap.Int("block_time_seconds", info.BlockTime))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(info.BlockTime) * time.Second):
		}
	}

	response, err := solveChallenge(info.Challenge, c.cfg.Password)
	if err != nil {
		return err
	}

	data, err = c.postForm(ctx, loginPath+"?version=2", url.Values{
		"username": {c.cfg.Username},
		"response": {response},
	})
	if err != nil {
		return err
	}
	info, err = parseSessionInfo(data)
	if err != nil {
		return err
	}
	if info.SID == "" || info.SID == emptySID {
		return fmt.Errorf("%w: user %q", ErrLogin, c.cfg.Username)
	}

	c.setSID(info.SID)
	c.logger.Debug("logged in", zap.String("host", c.cfg.Host))
	return nil
}

// Logout invalidates the current session. It is a no-op without one.
func (c *Client) Logout(ctx context.Context) error {
	sid := c.SID()
	if sid == "" {
		return nil
	}
	_, err := c.get(ctx, loginPath, url.Values{
		"version": {"2"},
		"logout":  {"1"},
		"sid":     {sid},
	})
	c.setSID("")
	if err != nil {
		return err
	}
	c.logger.Debug("logged out", zap.String("host", c.cfg.Host))
	return nil
}

func parseSessionInfo(data []byte) (*sessionInfo, error) {
	info := &sessionInfo{}
	if err := xml.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("%w: invalid session info: %w", ErrConnection, err)
	}
	return info, nil
}

func solveChallenge(challenge, password string) (string, error) {
	if strings.HasPrefix(challenge, "2$") {
		return pbkdf2Response(challenge, password)
	}
	return md5Response(challenge, password)
}

// pbkdf2Response answers a "2$<iter1>$<salt1>$<iter2>$<salt2>" challenge.
func pbkdf2Response(challenge, password string) (string, error) {
	parts := strings.Split(challenge, "$")
	if len(parts) != 5 {
		return "", fmt.Errorf("%w: malformed challenge %q", ErrLogin, challenge)
	}
	iter1, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: malformed challenge %q", ErrLogin, challenge)
	}
	salt1, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: malformed challenge %q", ErrLogin, challenge)
	}
	iter2, err := strconv.Atoi(parts[3])
	if err != nil {
		return "", fmt.Errorf("%w: malformed challenge %q", ErrLogin, challenge)
	}
	salt2, err := hex.DecodeString(parts[4])
	if err != nil {
		return "", fmt.Errorf("%w: malformed challenge %q", ErrLogin, challenge)
	}

	hash1 := pbkdf2.Key([]byte(password), salt1, iter1, sha256.Size, sha256.New)
	hash2 := pbkdf2.Key(hash1, salt2, iter2, sha256.Size, sha256.New)
	return parts[4] + "$" + hex.EncodeToString(hash2), nil
}

// md5Response answers a legacy challenge: md5 over the UTF-16LE "challenge-password".
func md5Response(challenge, password string) (string, error) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(challenge + "-" + password))
	if err != nil {
		return "", err
	}
	sum := md5.Sum(encoded)
	return challenge + "-" + hex.EncodeToString(sum[:]), nil
}
