package queue

import "strings"

// Bucket names a partition of a community's readiness queue.
type Bucket string

// General is the unconstrained pool.
const General Bucket = "general"

// Normalize trims and lower-cases a bucket label.
func Normalize(label string) Bucket {
	return Bucket(strings.ToLower(strings.TrimSpace(label)))
}

// Counts summarizes one bucket for status reporting.
type Counts struct {
	Bucket   Bucket `json:"bucket"`
	Total    int    `json:"total"`
	Eligible int    `json:"eligible"`
	Waiting  int    `json:"waiting"`
}
