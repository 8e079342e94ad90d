// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"fmt"

	"github.com/emersion/go-imap"
)

// Moving is the only mutation the cleaner performs. Servers with the MOVE
// extension get a native UID MOVE; everything else falls back to the
// copy, flag \Deleted, expunge sequence. The expunge step itself has two
// variants: UID EXPUNGE where UIDPLUS is available, and a plain EXPUNGE
// guarded by a readiness check, since EXPUNGE would also purge mails some
// other client flagged earlier.

type mover interface {
	move(uids []uint32, folder string) error
	moveReady() (error, error)
}

type expunger interface {
	expunge(seqset *imap.SeqSet, uids []uint32) error
	expungeReady() (error, error)
}

type moveClient interface {
	UidMove(seqset *imap.SeqSet, dest string) error
}

type moveMover struct {
	moveClient moveClient
}

func (m *moveMover) move(uids []uint32, folder string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	return m.moveClient.UidMove(seqset, folder)
}

func (m *moveMover) moveReady() (error, error) {
	// MOVE implements move directly and is therefore ready all the time
	return nil, nil
}

type deletedFlagger interface {
	flagDeleted(uids []uint32) (*imap.SeqSet, error)
}

type copyClient interface {
	deletedFlagger
	UidCopy(seqset *imap.SeqSet, dest string) error
}

type copyExpungeMover struct {
	imapConn copyClient
	expunger expunger
}

func (c *copyExpungeMover) move(uids []uint32, folder string) error {
	notReadyReason, err := c.moveReady()
	if err != nil {
		return fmt.Errorf("could not check for expunge readiness to move: %w", err)
	}

	if notReadyReason != nil {
		return fmt.Errorf("folder is not ready for expunge, cannot move (copy&expunge): %w", notReadyReason)
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	err = c.imapConn.UidCopy(seqset, folder)
	if err != nil {
		return fmt.Errorf("could not copy mails: %w", err)
	}

	flagged, err := c.imapConn.flagDeleted(uids)
	if err != nil {
		return fmt.Errorf("could not flag copied mails as deleted: %w", err)
	}

	err = c.expunger.expunge(flagged, uids)
	if err != nil {
		return fmt.Errorf("could not expunge moved mails: %w", err)
	}

	return nil
}

func (c *copyExpungeMover) moveReady() (error, error) {
	return c.expunger.expungeReady()
}

type uidExpungeClient interface {
	UidExpunge(seqSet *imap.SeqSet, ch chan uint32) error
}

type uidPlusExpunger struct {
	client uidExpungeClient
}

func (u *uidPlusExpunger) expunge(seqset *imap.SeqSet, uids []uint32) error {
	out := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- u.client.UidExpunge(seqset, out)
	}()

	expunged := []uint32{}
	for uid := range out {
		expunged = append(expunged, uid)
	}

	err := <-done
	if err != nil {
		return fmt.Errorf("could not expunge mails: %w", err)
	}

	if len(expunged) != len(uids) {
		return fmt.Errorf("unexpected number of expunges, expected %d got %d", len(uids), len(expunged))
	}

	return nil
}

func (u *uidPlusExpunger) expungeReady() (error, error) {
	// UID EXPUNGE only touches the given uids and is therefore always ready
	return nil, nil
}

type fullExpungeClient interface {
	Expunge(ch chan uint32) error
	UidSearch(criteria *imap.SearchCriteria) (uids []uint32, err error)
}

type compatibilityExpunger struct {
	imapConn fullExpungeClient
}

func (c *compatibilityExpunger) expunge(seqset *imap.SeqSet, uids []uint32) error {
	out := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- c.imapConn.Expunge(out)
	}()

	expunged := []uint32{}
	for uid := range out {
		expunged = append(expunged, uid)
	}

	err := <-done
	if err != nil {
		return fmt.Errorf("could not expunge mails: %w", err)
	}

	if len(expunged) != len(uids) {
		return fmt.Errorf("unexpected number of expunges, expected %d got %d", len(uids), len(expunged))
	}

	return nil
}

var ItemsWithDeletedFlagPresent = fmt.Errorf("folder has previous items with delete flag set")

func (c *compatibilityExpunger) expungeReady() (error, error) {
	// A plain EXPUNGE removes everything flagged \Deleted, so the folder is
	// only ready when nothing carries the flag yet.
	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}
	ids, err := c.imapConn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search for deleted in folder: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}
	return ItemsWithDeletedFlagPresent, nil
}
