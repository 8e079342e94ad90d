// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"fmt"
	"io"

	"github.com/cecuchetti/outlook-cleaner/domain"
	"github.com/cecuchetti/outlook-cleaner/log"
	"github.com/cecuchetti/outlook-cleaner/mail"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap-move"
	"github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

type ImapConnection struct {
	connection *client.Client
	mailMover  mover

	server, email string

	selectedFolder string

	l *logrus.Logger
}

// NewImapConnection dials the server over implicit TLS and authenticates with
// XOAUTH2. A rejected token wraps domain.ErrAuthentication so the caller can
// retry with a fresh login instead of treating it as a mailbox failure.
func NewImapConnection(server string, email string, accessToken string) (*ImapConnection, error) {
	imapClient, err := client.DialTLS(server, nil)
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	err = imapClient.Authenticate(NewXOAuth2Client(email, accessToken))
	if err != nil {
		_ = imapClient.Logout()
		return nil, fmt.Errorf("%w: imap server rejected XOAUTH2 login: %v", domain.ErrAuthentication, err)
	}

	uidPlusClient := uidplus.NewClient(imapClient)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		return nil, fmt.Errorf("could not check for UIDPLUS support: %w", err)
	}

	moveClient := move.NewClient(imapClient)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		return nil, fmt.Errorf("could not check for MOVE support: %w", err)
	}

	conn := &ImapConnection{
		connection: imapClient,
		server:     server,
		email:      email,
		l:          log.Logger(log.LOG_IMAP),
	}

	baseLogger := conn.l.WithFields(logrus.Fields{"server": server, "user": email})
	baseLogger.Debug("Authenticated via XOAUTH2")

	var exp expunger
	if uidPlusSupported {
		baseLogger.Debug("UIDPLUS supported on server, expunging by uid")
		exp = &uidPlusExpunger{
			client: uidPlusClient,
		}
	} else {
		baseLogger.Info("UIDPLUS not supported on server, falling back to full expunge")
		exp = &compatibilityExpunger{
			imapConn: conn,
		}
	}

	if moveSupported {
		baseLogger.Debug("MOVE supported on server")
		conn.mailMover = &moveMover{
			moveClient: moveClient,
		}
	} else {
		baseLogger.Info("MOVE not supported on server, falling back to copy&expunge")
		conn.mailMover = &copyExpungeMover{
			imapConn: conn,
			expunger: exp,
		}
	}

	return conn, nil
}

func (ic *ImapConnection) Select(folder string) (uint32, error) {
	m, err := ic.connection.Select(folder, false)
	if err != nil {
		return 0, fmt.Errorf("could not select folder: %w", err)
	}

	ic.selectedFolder = folder
	return m.UidValidity, nil
}

func (ic *ImapConnection) ListUids() ([]uint32, error) {
	// Get all UIDs in folder (empty search criteria)
	criteria := imap.NewSearchCriteria()
	ids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not list folder: %w", err)
	}

	return ids, nil
}

// FetchSenders retrieves From and Subject headers only, peeking so messages
// keep their unread state. A message whose headers cannot be parsed is logged
// and skipped rather than failing the batch.
func (ic *ImapConnection) FetchSenders(uids []uint32) ([]*domain.ImapMail, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields: []string{
				"From",
				"Subject",
			},
		},
		Peek: true,
	}
	fetchItems := []imap.FetchItem{section.FetchItem()}

	out := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, out)
	}()

	mails := []*domain.ImapMail{}
	for msg := range out {
		r := msg.GetBody(section)
		if r == nil {
			ic.l.WithField("uid", msg.Uid).Warn("Fetch response contained no header section, skipping")
			continue
		}

		rawHeader, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("could not read mail headers: %w", err)
		}

		sender, subject, err := mail.MailHeaderInfos(rawHeader)
		if err != nil {
			ic.l.WithFields(logrus.Fields{"uid": msg.Uid, "error": err}).Warn("Could not parse mail headers, skipping")
			continue
		}

		mails = append(
			mails,
			&domain.ImapMail{
				Uid:     msg.Uid,
				Sender:  sender,
				Subject: subject,
			},
		)
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch mails: %w", err)
	}

	return mails, nil
}

func (ic *ImapConnection) MoveReady() (error, error) {
	return ic.mailMover.moveReady()
}

func (ic *ImapConnection) Move(uids []uint32, folder string) error {
	return ic.mailMover.move(uids, folder)
}

func (ic *ImapConnection) Close() error {
	return ic.connection.Logout()
}

func (ic *ImapConnection) UidCopy(seqset *imap.SeqSet, dest string) error {
	return ic.connection.UidCopy(seqset, dest)
}

func (ic *ImapConnection) Expunge(ch chan uint32) error {
	return ic.connection.Expunge(ch)
}

func (ic *ImapConnection) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	return ic.connection.UidSearch(criteria)
}

func (ic *ImapConnection) flagDeleted(uids []uint32) (*imap.SeqSet, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	err := ic.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
	if err != nil {
		return nil, fmt.Errorf("could not set delete flag: %w", err)
	}

	return seqset, nil
}
