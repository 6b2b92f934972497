package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ClassroomExamsKey returns the cache key for a classroom's published exams
func (r *CacheKeyStruct) ClassroomExamsKey(classroomID string) string {
	return fmt.Sprintf("classroom:%s:exams", classroomID)
}

// ClassroomMemberKey returns the cache key for a user's membership in a classroom
func (r *CacheKeyStruct) ClassroomMemberKey(classroomID string, userID int) string {
	return fmt.Sprintf("classroom:%s:member:%d", classroomID, userID)
}

// UserNoticeChannel returns the Redis PubSub channel name for a user's notices
func (r *CacheKeyStruct) UserNoticeChannel(userID int) string {
	return fmt.Sprintf("user:%d:notices", userID)
}

// LoginAttemptsKey returns the rate-limit counter key for a client IP
func (r *CacheKeyStruct) LoginAttemptsKey(ip string) string {
	return fmt.Sprintf("ratelimit:login:%s", ip)
}


// ExamMonitorChannel returns the Redis PubSub channel name for an exam's live monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
