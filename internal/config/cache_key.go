package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuestionDisplayKey returns the cache key for the answer-free question list of an exam type
func (r *CacheKeyStruct) QuestionDisplayKey(examType string) string {
	return fmt.Sprintf("questions:%s:display", examType)
}

// ResultsMonitorChannel returns the Redis PubSub channel carrying finished-test events
func (r *CacheKeyStruct) ResultsMonitorChannel() string {
	return "results:monitor"
}

var CacheKey = NewCacheKeyStruct()
