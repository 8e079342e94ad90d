// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/cecuchetti/outlook-cleaner/auth"
	"github.com/cecuchetti/outlook-cleaner/cleaner"
	"github.com/cecuchetti/outlook-cleaner/config"
	"github.com/cecuchetti/outlook-cleaner/domain"
	"github.com/cecuchetti/outlook-cleaner/filter"
	"github.com/cecuchetti/outlook-cleaner/imapconnection"
	"github.com/cecuchetti/outlook-cleaner/log"
	"github.com/cecuchetti/outlook-cleaner/persistence"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the json configuration file")
	dryRun := flag.Bool("dry-run", false, "only report matching mails, regardless of configuration")
	historyRuns := flag.Int("history", 0, "print the last n recorded runs and exit")
	flag.Parse()

	log.InitLogging("info")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig(*configPath)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	var history domain.History
	if len(conf.HistoryDatabase) > 0 {
		p, err := persistence.NewHistory(conf.HistoryDatabase)
		if err != nil {
			logger.WithField("error", err).Fatal("Could not open history database")
		}
		defer p.Close()
		history = p
	}

	if *historyRuns > 0 {
		if history == nil {
			logger.Fatal("History is disabled in the configuration")
		}
		printHistory(logger, history, *historyRuns)
		return
	}

	ctx := context.Background()

	authenticator, err := auth.NewAuthenticator(
		conf.OAuth2.ClientId,
		conf.OAuth2.TenantId,
		conf.Email,
		auth.DefaultCachePath(),
		conf.OAuth2.ForceInteractiveLogin,
		conf.OAuth2.UseDeviceCode,
	)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not create authenticator")
	}

	token, err := authenticator.AcquireToken(ctx)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not authenticate, re-run to retry the login")
	}

	imapConn, err := imapconnection.NewImapConnection(conf.Imap.Server, conf.Email, token)
	if errors.Is(err, domain.ErrAuthentication) && conf.OAuth2.ForceInteractiveLogin {
		// The cached token can go stale between acquisition and login, one
		// fresh interactive login before giving up.
		logger.WithField("error", err).Warn("Server rejected the token, retrying with a fresh login")
		token, err = authenticator.AcquireTokenInteractive(ctx)
		if err != nil {
			logger.WithField("error", err).Fatal("Could not re-authenticate")
		}
		imapConn, err = imapconnection.NewImapConnection(conf.Imap.Server, conf.Email, token)
	}
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to imap")
	}
	defer imapConn.Close()

	if len(conf.Cleaning.SenderNamesToSearch) == 0 {
		logger.Warn("No sender names configured, no mails will match")
	}

	configs := []cleaner.ConfigFunc{cleaner.MoveTo(conf.Cleaning.DeletedFolder)}
	if *dryRun || !conf.Cleaning.MoveToDeleted {
		configs = append(configs, cleaner.DryRun())
	}

	cl, err := cleaner.NewCleaner(history, imapConn, filter.SenderNames(conf.Cleaning.SenderNamesToSearch), configs...)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not start cleaner")
	}

	result, err := cl.Clean(conf.Imap.Mailbox)
	if err != nil {
		logger.WithField("error", err).Fatal("Cleaning failed")
	}

	if result.DryRun {
		logger.WithFields(logrus.Fields{"folder": result.Folder, "searched": result.Searched, "wouldmove": result.Matched}).Info("Dry-run finished, nothing was moved")
	} else {
		logger.WithFields(logrus.Fields{"folder": result.Folder, "searched": result.Searched, "matched": result.Matched, "moved": result.Moved, "errors": result.Errors}).Info("Cleaning finished")
		if result.Errors > 0 {
			logger.WithField("errors", result.Errors).Warn("Some mails could not be moved, they will be picked up again on the next run")
		}
	}
}

func printHistory(logger *logrus.Logger, history domain.History, limit int) {
	runs, err := history.RecentRuns(limit)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not read history")
	}

	for _, r := range runs {
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Printf("%s  %-8s folder=%s searched=%d matched=%d moved=%d errors=%d\n",
			r.RunAt.Format(time.RFC3339), mode, r.Folder, r.Searched, r.Matched, r.Moved, r.Errors)
	}
}
