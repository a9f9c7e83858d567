package task

import "time"

const (
	timeoutEventually = time.Second
	tickEventually    = time.Millisecond
)
