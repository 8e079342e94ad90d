// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

type MovedMail struct {
	Uid         uint32
	Sender      string
	Subject     string
	MatchedName string
}

type SaveRun struct {
	RunAt    time.Time
	Folder   string
	Searched int
	Matched  int
	Moved    int
	Errors   int
	DryRun   bool
	Mails    []MovedMail
}

type CleaningRun struct {
	Id       int64
	RunAt    time.Time
	Folder   string
	Searched int
	Matched  int
	Moved    int
	Errors   int
	DryRun   bool
}

type History interface {
	Close() error
	SaveRun(run SaveRun) error
	RecentRuns(limit int) ([]*CleaningRun, error)
}
