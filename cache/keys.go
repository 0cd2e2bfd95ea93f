package cache

import "fmt"

const LeaderboardKey = "badges:leaderboard"

func UserStatsKey(userID uint) string {
	return fmt.Sprintf("user_stats:%d", userID)
}

func ResponseKey(userID uint, path, rawQuery string) string {
	return fmt.Sprintf("cache:%d:%s?%s", userID, path, rawQuery)
}

func UserResponsePattern(userID uint) string {
	return fmt.Sprintf("cache:%d:*", userID)
}

func RateLimitKey(clientIP string) string {
	return fmt.Sprintf("rate_limit:%s", clientIP)
}
