package activity

import "time"

// DailyActivity is one day's practice volume, keyed remotely by the date
// string (YYYY-MM-DD) under users/{uid}/dailyActivity.
type DailyActivity struct {
	Date         string    `json:"date"`
	ProblemCount int       `json:"problemCount" firestore:"problemCount"`
	TopicCount   int       `json:"topicCount" firestore:"topicCount"`
	Timestamp    time.Time `json:"timestamp" firestore:"timestamp"`
}

// DateKey formats a timestamp as the dailyActivity document id.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
