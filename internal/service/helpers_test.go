package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func cacheEncode(entries map[string][]byte, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entries[key] = raw
	return nil
}

func cacheDecode(entries map[string][]byte, key string, dest interface{}) error {
	raw, ok := entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}
