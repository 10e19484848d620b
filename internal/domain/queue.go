package domain

import "time"

type JobKind string

const (
	JobKindReport  JobKind = "report"
	JobKindArticle JobKind = "article"
	JobKindMeme    JobKind = "meme"
	JobKindSlop    JobKind = "slop"
)

// QueueMessage is the transport format sent to queue backends. TargetID is
// the id of the entity the worker should drive (report or derived asset).
type QueueMessage struct {
	JobID       string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	TargetID    string    `json:"target_id"`
	ReportID    string    `json:"report_id"`
	Attempt     int       `json:"attempt"`
	RequestedAt time.Time `json:"requested_at"`
}
