package store

import "strings"

const (
	accountNameField = "AccountName="
	accountKeyField  = "AccountKey="
)

// Credentials holds the shared-key pair parsed from a storage connection
// string. A zero AccountName means no credentials were found; AccountKey is
// only meaningful when AccountName is set.
type Credentials struct {
	AccountName string
	AccountKey  string
}

// Valid reports whether both halves of the shared-key pair are present.
func (c Credentials) Valid() bool {
	return c.AccountName != "" && c.AccountKey != ""
}

// ParseConnectionString extracts the account name and key from a
// semicolon-delimited connection string. All other fields are ignored.
//
// The key is only looked up once a name has been found, so a connection
// string carrying AccountKey= but no AccountName= yields no credentials at
// all. When a field occurs more than once the first occurrence wins.
func ParseConnectionString(connection string) Credentials {
	creds := Credentials{}

	creds.AccountName = connValue(connection, accountNameField)
	if creds.AccountName != "" {
		creds.AccountKey = connValue(connection, accountKeyField)
	}

	return creds
}

// connValue returns the value following field up to the next semicolon, or
// to the end of the string when the field is the last one.
func connValue(connection, field string) string {
	idx := strings.Index(connection, field)
	if idx == -1 {
		return ""
	}

	value := connection[idx+len(field):]
	if end := strings.IndexByte(value, ';'); end != -1 {
		value = value[:end]
	}

	return value
}
