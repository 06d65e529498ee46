package store

import (
	"fmt"
	"strings"
)

// serviceDomain is the fixed blob endpoint suffix used for every URI this
// package produces.
const serviceDomain = "blob.core.windows.net"

// ParsedURI is the structural breakdown of a fully qualified blob URI.
type ParsedURI struct {
	Account       string
	Container     string
	BlobPath      string
	FileName      string
	FileExtension string
	SASToken      string
}

// ParseBlobURI decomposes a blob URI, with or without a trailing SAS token,
// into its parts. The second return value is false when the string is not
// recognizable as a blob URI; classification failures are never partial, the
// returned ParsedURI is either fully populated or the zero value.
//
// A recognizable URI has the shape
// scheme://account.<suffix>/container/path/to/object[?token].
func ParseBlobURI(uri string) (ParsedURI, bool) {
	const scheme = "://"

	idx := strings.Index(uri, scheme)
	if idx == -1 {
		return ParsedURI{}, false
	}

	rest := uri[idx+len(scheme):]

	// Everything from the first '?' onward, inclusive, is the token.
	token := ""
	if q := strings.IndexByte(rest, '?'); q != -1 {
		token = rest[q:]
		rest = rest[:q]
	}

	// The first segment is the authority, the remainder the raw path.
	slash := strings.IndexByte(rest, '/')
	if slash == -1 {
		return ParsedURI{}, false
	}
	authority := rest[:slash]
	rawPath := rest[slash+1:]

	// The authority needs a dot to delimit the account, and the raw path
	// needs another slash to delimit the container. Both, not either.
	if !strings.Contains(authority, ".") || !strings.Contains(rawPath, "/") {
		return ParsedURI{}, false
	}

	account := authority[:strings.IndexByte(authority, '.')]

	slash = strings.IndexByte(rawPath, '/')
	container := rawPath[:slash]
	blobPath := rawPath[slash+1:]

	fileName := blobPath
	if last := strings.LastIndexByte(blobPath, '/'); last != -1 {
		fileName = blobPath[last+1:]
	}

	extension := ""
	if dot := strings.LastIndexByte(fileName, '.'); dot != -1 {
		extension = fileName[dot+1:]
	}

	return ParsedURI{
		Account:       account,
		Container:     container,
		BlobPath:      blobPath,
		FileName:      fileName,
		FileExtension: extension,
		SASToken:      token,
	}, true
}

// BlobURI assembles the fully qualified URI for a blob, appending the token
// as-is. It round-trips with ParseBlobURI for any container and path free of
// embedded '?'.
func BlobURI(account, container, blobPath, token string) string {
	return fmt.Sprintf("https://%s.%s/%s/%s%s", account, serviceDomain, container, blobPath, token)
}
