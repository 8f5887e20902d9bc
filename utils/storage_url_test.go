package utils_test

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/parts_backend/utils"
)

func TestResolveObjectReadURL_PublicMode(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_MODE", "")
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://files.example.com/parts")

	got := utils.ResolveObjectReadURL(context.Background(), "proofs/po-1001.pdf")
	if got != "https://files.example.com/parts/proofs/po-1001.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveObjectReadURL_Passthrough(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_MODE", "signed")

	if got := utils.ResolveObjectReadURL(context.Background(), ""); got != "" {
		t.Fatalf("empty key: got %q", got)
	}
	full := "https://other.example.com/doc.pdf"
	if got := utils.ResolveObjectReadURL(context.Background(), full); got != full {
		t.Fatalf("full URL: got %q", got)
	}
}

func TestResolveObjectReadURL_SignedModeFallsBackWithoutCredentials(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_MODE", "signed")
	t.Setenv("GCS_CREDENTIALS_JSON", "")
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "storage.googleapis.com")
	t.Setenv("GCS_BUCKET", "parts-proofs")

	// Signing cannot work without a service account key; the reference must
	// still render via the public form.
	got := utils.ResolveObjectReadURL(context.Background(), "proofs/po-1001.pdf")
	if got != "https://storage.googleapis.com/parts-proofs/proofs/po-1001.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestGetStorageAccessMode_DefaultsToPublic(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_MODE", "")
	if got := utils.GetStorageAccessMode(); got != utils.StorageAccessPublic {
		t.Fatalf("got %q", got)
	}
	t.Setenv("STORAGE_ACCESS_MODE", "Signed")
	if got := utils.GetStorageAccessMode(); got != utils.StorageAccessSigned {
		t.Fatalf("got %q", got)
	}
}
