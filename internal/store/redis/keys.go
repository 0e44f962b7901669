package redis

const (
	// KeyLastRefresh holds the most recent refresh report
	KeyLastRefresh = "tidy:refresh:last"
	// KeyRefreshHistory is a capped list of recent refresh reports, newest first
	KeyRefreshHistory = "tidy:refresh:history"
	// KeyPrefixRevoked is the prefix for revoked session ids
	KeyPrefixRevoked = "tidy:session:revoked:"
)

// RevokedSessionKey returns the Redis key marking a session id as revoked
func RevokedSessionKey(jti string) string {
	return KeyPrefixRevoked + jti
}
