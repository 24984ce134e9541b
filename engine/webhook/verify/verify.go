// Package verify implements pluggable webhook signature verification
// strategies used by the ingress handler (C9): none, hmac, github, stripe.
package verify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config selects and parameterizes a Verifier.
type Config struct {
	Strategy string // "none" | "hmac" | "github" | "stripe"
	Secret   string // literal value, or "env://VAR_NAME" to resolve from the environment
	Header   string // required for "hmac"; ignored otherwise
}

// Verifier checks an incoming webhook request's authenticity.
type Verifier interface {
	Verify(ctx context.Context, req *http.Request, body []byte) error
}

// New builds a Verifier for cfg.Strategy, resolving env:// secrets eagerly.
func New(cfg Config) (Verifier, error) {
	switch cfg.Strategy {
	case "", "none":
		return noneVerifier{}, nil
	case "hmac":
		if cfg.Header == "" {
			return nil, fmt.Errorf("verify: missing signature header name for hmac strategy")
		}
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return hmacVerifier{secret: secret, header: cfg.Header}, nil
	case "github":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return githubVerifier{secret: secret}, nil
	case "stripe":
		secret, err := resolveSecret(cfg.Secret)
		if err != nil {
			return nil, err
		}
		return stripeVerifier{secret: secret}, nil
	default:
		return nil, fmt.Errorf("verify: unknown verification strategy %q", cfg.Strategy)
	}
}

func resolveSecret(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("verify: empty secret")
	}
	if name, ok := strings.CutPrefix(raw, "env://"); ok {
		val, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("verify: secret env not set: %s", name)
		}
		return val, nil
	}
	return raw, nil
}

type noneVerifier struct{}

func (noneVerifier) Verify(context.Context, *http.Request, []byte) error { return nil }

type hmacVerifier struct {
	secret string
	header string
}

func (v hmacVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	sig := req.Header.Get(v.header)
	if sig == "" {
		return fmt.Errorf("verify: missing signature header: %s", v.header)
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("verify: invalid signature encoding: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	want := mac.Sum(nil)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return fmt.Errorf("verify: signature mismatch")
	}
	return nil
}

type githubVerifier struct {
	secret string
}

func (v githubVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	header := req.Header.Get("X-Hub-Signature-256")
	value, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return fmt.Errorf("verify: invalid GitHub signature header")
	}
	if value == "" {
		return fmt.Errorf("verify: missing GitHub signature")
	}
	got, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("verify: invalid GitHub signature encoding: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(body)
	want := mac.Sum(nil)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return fmt.Errorf("verify: signature mismatch")
	}
	return nil
}

type stripeVerifier struct {
	secret string
}

const stripeMaxSkew = 5 * time.Minute

func (v stripeVerifier) Verify(_ context.Context, req *http.Request, body []byte) error {
	header := req.Header.Get("Stripe-Signature")
	var ts string
	var v1s []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			v1s = append(v1s, kv[1])
		}
	}
	if ts == "" || len(v1s) == 0 {
		return fmt.Errorf("verify: invalid Stripe-Signature format")
	}
	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("verify: invalid Stripe-Signature format: %w", err)
	}
	if skew := time.Since(time.Unix(tsInt, 0)); skew > stripeMaxSkew || skew < -stripeMaxSkew {
		return fmt.Errorf("verify: timestamp skew too large")
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	want := mac.Sum(nil)
	for _, candidate := range v1s {
		got, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if subtle.ConstantTimeCompare(got, want) == 1 {
			return nil
		}
	}
	return fmt.Errorf("verify: signature mismatch")
}
