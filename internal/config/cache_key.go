package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RevokedTokenKey marks a token ID as logged out until it expires.
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// VerificationTokenKey maps an email verification token to its user ID.
func (r *CacheKeyStruct) VerificationTokenKey(token string) string {
	return fmt.Sprintf("auth:verify:%s", token)
}

// PrincipalEventsChannel is the PubSub channel carrying session events for one user.
func (r *CacheKeyStruct) PrincipalEventsChannel(userID string) string {
	return fmt.Sprintf("principal:%s:events", userID)
}

// PermissionInvalidateChannel tells every API instance to drop cached principals.
func (r *CacheKeyStruct) PermissionInvalidateChannel() string {
	return "authz:invalidate"
}

var CacheKey = NewCacheKeyStruct()
