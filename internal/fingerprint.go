package internal

import "gitee.com/golang-module/dongle"

// fingerprint returns the hex SHA-256 of a checkout token, so audit records can be
// correlated without storing the token itself.
func fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return dongle.Encrypt.FromString(token).BySha256().ToHexString()
}
