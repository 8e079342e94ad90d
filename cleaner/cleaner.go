// SPDX-License-Identifier: GPL-3.0-or-later
package cleaner

import (
	"fmt"
	"time"

	"github.com/cecuchetti/outlook-cleaner/domain"
	"github.com/cecuchetti/outlook-cleaner/log"
	"github.com/cecuchetti/outlook-cleaner/mail"

	"github.com/sirupsen/logrus"
)

const BatchSize = 50

// Cleaner runs the filter-and-clean workflow: enumerate a folder, fetch the
// From headers, match display names against the configured targets and move
// the matches to the deleted folder, or only report them in dry-run.
type Cleaner struct {
	history        domain.History
	imapConnection domain.ImapConnector
	matcher        domain.SenderMatcher

	configuration *configuration

	l *logrus.Logger
}

func NewCleaner(history domain.History, imapConnection domain.ImapConnector, matcher domain.SenderMatcher, configFunc ...ConfigFunc) (*Cleaner, error) {
	config := &configuration{}
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	if !config.DryRun && len(config.DeletedFolder) == 0 {
		return nil, fmt.Errorf("error applying configuration: a destination folder is required unless dry-run is enabled")
	}

	return &Cleaner{
		history:        history,
		imapConnection: imapConnection,
		matcher:        matcher,
		configuration:  config,
		l:              log.Logger(log.LOG_CLEANER),
	}, nil
}

// Clean processes one folder. Per-message move failures are logged, counted
// and skipped, they never abort the remaining batch. Folder selection and
// fetch failures are fatal for the run.
func (c *Cleaner) Clean(folder string) (*domain.CleaningResult, error) {
	_, err := c.imapConnection.Select(folder)
	if err != nil {
		return nil, fmt.Errorf("could not select folder %s: %w", folder, err)
	}

	if !c.configuration.DryRun {
		notMoveReadyReason, err := c.imapConnection.MoveReady()
		if err != nil {
			return nil, fmt.Errorf("could not check for move readiness: %w", err)
		}

		if notMoveReadyReason != nil {
			return nil, fmt.Errorf("folder %s is not ready for mail moving: %w", folder, notMoveReadyReason)
		}
	}

	uids, err := c.imapConnection.ListUids()
	if err != nil {
		return nil, fmt.Errorf("could not list uids in folder: %w", err)
	}

	result := &domain.CleaningResult{
		Folder:   folder,
		Searched: len(uids),
		DryRun:   c.configuration.DryRun,
	}

	movedMails := []domain.MovedMail{}
	if len(uids) == 0 {
		c.l.WithField("folder", folder).Info("Folder contains no mails")
	} else {
		batches := partitionUids(uids, BatchSize)
		c.l.WithFields(logrus.Fields{"folder": folder, "mails": len(uids), "batches": len(batches), "filter": c.matcher.Description(), "dryrun": c.configuration.DryRun}).Info("Scanning mails")

		for _, batch := range batches {
			start := time.Now()
			mails, err := c.imapConnection.FetchSenders(batch)
			if err != nil {
				return nil, fmt.Errorf("could not fetch mail batch: %w", err)
			}

			for _, m := range mails {
				matchedName, ok := c.matcher.Match(m.Sender)
				if !ok {
					continue
				}
				result.Matched++

				baseLogger := c.l.WithFields(logrus.Fields{"folder": folder, "sender": m.Sender, "matched": matchedName, "subject": mail.ShortSubject(m.Subject)})
				if c.configuration.DryRun {
					baseLogger.Info("Would move mail due to dry-run")
					continue
				}

				err = c.imapConnection.Move([]uint32{m.Uid}, c.configuration.DeletedFolder)
				if err != nil {
					result.Errors++
					baseLogger.WithField("error", err).Warn("Could not move mail, continuing with remaining mails")
					continue
				}

				result.Moved++
				movedMails = append(
					movedMails,
					domain.MovedMail{
						Uid:         m.Uid,
						Sender:      m.Sender,
						Subject:     m.Subject,
						MatchedName: matchedName,
					},
				)
				baseLogger.Debug("Moved mail")
			}

			c.l.WithFields(logrus.Fields{"duration": time.Since(start), "batchsize": len(batch)}).Debug("Scanned batch")
		}
	}

	if c.history != nil {
		err = c.history.SaveRun(
			domain.SaveRun{
				RunAt:    time.Now(),
				Folder:   folder,
				Searched: result.Searched,
				Matched:  result.Matched,
				Moved:    result.Moved,
				Errors:   result.Errors,
				DryRun:   result.DryRun,
				Mails:    movedMails,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("could not save run: %w", err)
		}
	}

	return result, nil
}

// taken from https://github.com/golang/go/wiki/SliceTricks
func partitionUids(uids []uint32, partitionSize int) [][]uint32 {
	batches := make([][]uint32, 0, (len(uids)+partitionSize-1)/partitionSize)

	for partitionSize < len(uids) {
		uids, batches = uids[partitionSize:], append(batches, uids[0:partitionSize:partitionSize])
	}
	batches = append(batches, uids)

	return batches
}
