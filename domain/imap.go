// SPDX-License-Identifier: GPL-3.0-or-later
package domain

// ImapMail carries the only message attributes the cleaner ever inspects:
// the uid used to address a move and the decoded From display name. The
// subject is fetched alongside for logging and history, never for matching.
type ImapMail struct {
	Uid     uint32
	Sender  string
	Subject string
}

type ImapConnector interface {
	Select(folder string) (uint32, error)
	ListUids() ([]uint32, error)
	FetchSenders(uids []uint32) ([]*ImapMail, error)
	MoveReady() (error, error)
	Move(uids []uint32, folder string) error

	Close() error
}
