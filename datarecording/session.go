package datarecording

import (
	"os"
	"strings"
	"time"
)

// sessionInfo rows describe one recording session.
type sessionInfo struct {
	Property string
	Value    string
}

type sessionRecorder struct {
	tableName string
	recorder  DataRecorder
}

const sessionTimeFormat = "2006-01-02 15:04:05.000000000"

// startSession creates the session_info table and records when and how the
// recording session started.
func startSession(recorder DataRecorder) *sessionRecorder {
	s := &sessionRecorder{
		tableName: "session_info",
		recorder:  recorder,
	}

	s.recorder.CreateTable(s.tableName, sessionInfo{})

	s.note("Start Time", time.Now().Format(sessionTimeFormat))
	s.note("Command", strings.Join(os.Args, " "))

	wd, err := os.Getwd()
	if err == nil {
		s.note("Working Directory", wd)
	}

	return s
}

func (s *sessionRecorder) note(property, value string) {
	s.recorder.InsertData(s.tableName, sessionInfo{property, value})
}

// End records the session end time.
func (s *sessionRecorder) End() {
	s.note("End Time", time.Now().Format(sessionTimeFormat))
}
