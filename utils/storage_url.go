package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

const (
	StorageAccessPublic = "public"
	StorageAccessSigned = "signed"

	defaultSignedURLTTL = 15 * time.Minute
)

func GetStorageAccessMode() string {
	mode := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_ACCESS_MODE")))
	if mode == "" {
		return StorageAccessPublic
	}
	return mode
}

// ResolveObjectReadURL resolves an opaque object key to a browser-reachable
// URL, dispatching on STORAGE_ACCESS_MODE: "signed" buckets get a V4 signed
// GET URL, everything else the public form. Signing failures fall back to
// the public form so a stored reference still renders.
func ResolveObjectReadURL(ctx context.Context, objectKey string) string {
	if objectKey == "" || strings.Contains(objectKey, "://") {
		return objectKey
	}

	if GetStorageAccessMode() == StorageAccessSigned {
		ttl := defaultSignedURLTTL
		if raw := strings.TrimSpace(os.Getenv("STORAGE_SIGNED_URL_TTL")); raw != "" {
			if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
				ttl = parsed
			}
		}
		if signed, err := SignObjectReadURL(ctx, objectKey, ttl); err == nil {
			return signed
		}
	}

	return BuildObjectAccessURL(objectKey)
}

// BuildObjectAccessURL resolves an opaque object key (e.g. an order-proof
// reference) to a browser-reachable URL. The core never inspects blob
// contents; this is edge-only presentation.
func BuildObjectAccessURL(objectKey string) string {
	if objectKey == "" {
		return ""
	}
	// Already a full URL: pass through untouched.
	if strings.Contains(objectKey, "://") {
		return objectKey
	}

	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}

	gcsURL := strings.TrimSpace(os.Getenv("GCS_URL"))
	gcsBucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if gcsURL != "" && gcsBucket != "" {
		return "https://" + gcsURL + "/" + gcsBucket + "/" + objectKey
	}

	return objectKey
}

// SignObjectReadURL returns a V4 signed GET URL for a private GCS object.
// Requires GCS_BUCKET and GCS_CREDENTIALS_JSON (service account key).
func SignObjectReadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON"))
	if credJSON == "" {
		return "", errors.New("GCS_CREDENTIALS_JSON is required for signed URLs")
	}
	var key serviceAccountJSON
	if err := json.Unmarshal([]byte(credJSON), &key); err != nil {
		return "", fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
	}

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: key.ClientEmail,
		PrivateKey:     []byte(key.PrivateKey),
	}
	return storage.SignedURL(bucket, objectKey, opts)
}
