package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// JobLastRunKey returns the key holding the outcome of a job's most recent run
func (r *CacheKeyStruct) JobLastRunKey(job string) string {
	return fmt.Sprintf("job:%s:last_run", job)
}

// JobRunHistoryKey returns the capped list of a job's recent run outcomes
func (r *CacheKeyStruct) JobRunHistoryKey(job string) string {
	return fmt.Sprintf("job:%s:history", job)
}

var CacheKey = NewCacheKeyStruct()
