package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionID returns the identifier of a candidate's session for a test.
func (r *CacheKeyStruct) SessionID(testID, candidateID string) string {
	return fmt.Sprintf("candidate:%s:test:%s", candidateID, testID)
}

// SessionCheckpointKey returns the cache key for a session's checkpoint record
func (r *CacheKeyStruct) SessionCheckpointKey(sessionID string) string {
	return fmt.Sprintf("session:%s:checkpoint", sessionID)
}

// SessionSubmittedKey returns the cache key marking a session as submitted
func (r *CacheKeyStruct) SessionSubmittedKey(sessionID string) string {
	return fmt.Sprintf("session:%s:submitted", sessionID)
}

// RevokedTokenKey returns the cache key marking a JWT id as revoked
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("token:%s:revoked", jti)
}

// TestPayloadKey returns the cache key for a test definition
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestMonitorChannel returns the pub/sub channel proctors watch for a test
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

var CacheKey = NewCacheKeyStruct()
