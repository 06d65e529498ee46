package store

import (
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// DefaultTokenValidity is how long issued SAS tokens remain usable when the
// caller does not supply a validity window.
const DefaultTokenValidity = 7 * 24 * time.Hour

// BlobToken mints a read-only SAS token for a single blob. The returned
// string is prefixed with '?' so it can be appended directly to a blob URI.
// Returns ErrMissingCredentials when the credentials are incomplete.
func BlobToken(creds Credentials, container, blobPath string, validFor time.Duration) (string, error) {
	perms := sas.BlobPermissions{Read: true}

	return signToken(creds, sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		Permissions:   perms.String(),
		ContainerName: container,
		BlobName:      blobPath,
	}, validFor)
}

// ContainerToken mints a read/add/create/write/delete SAS token scoped to a
// whole container, '?'-prefixed like BlobToken.
func ContainerToken(creds Credentials, container string, validFor time.Duration) (string, error) {
	perms := sas.ContainerPermissions{Read: true, Add: true, Create: true, Write: true, Delete: true}

	// A container SAS is a blob SAS with no blob name.
	return signToken(creds, sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		Permissions:   perms.String(),
		ContainerName: container,
	}, validFor)
}

func signToken(creds Credentials, values sas.BlobSignatureValues, validFor time.Duration) (string, error) {
	if !creds.Valid() {
		return "", ErrMissingCredentials
	}

	if validFor <= 0 {
		validFor = DefaultTokenValidity
	}

	now := time.Now().UTC()
	values.StartTime = now
	values.ExpiryTime = now.Add(validFor)

	cred, err := azblob.NewSharedKeyCredential(creds.AccountName, creds.AccountKey)
	if err != nil {
		// The key is present but not usable, e.g. not valid base64.
		return "", fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	params, err := values.SignWithSharedKey(cred)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return "?" + params.Encode(), nil
}
