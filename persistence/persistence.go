// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"fmt"
	"time"

	"github.com/cecuchetti/outlook-cleaner/domain"
	"github.com/cecuchetti/outlook-cleaner/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

// History records what every cleaning run found and moved, so dry runs can be
// compared against later live runs and accidental moves can be traced.
type History struct {
	db *sqlx.DB
	l  *logrus.Logger
}

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-runs",
			Up: []string{`
				CREATE TABLE runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_at DATETIME NOT NULL,
					folder TEXT NOT NULL,
					searched INTEGER NOT NULL,
					matched INTEGER NOT NULL,
					moved INTEGER NOT NULL,
					errors INTEGER NOT NULL,
					dry_run BOOLEAN NOT NULL
				)`,
			},
			Down: []string{`DROP TABLE runs`},
		},
		{
			Id: "2-moved-mails",
			Up: []string{`
				CREATE TABLE moved_mails (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id INTEGER NOT NULL REFERENCES runs (id),
					uid INTEGER NOT NULL,
					sender TEXT NOT NULL,
					subject TEXT NOT NULL,
					matched_name TEXT NOT NULL
				)`,
			},
			Down: []string{`DROP TABLE moved_mails`},
		},
	},
}

func NewHistory(datasource string) (*History, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Debug("Connected")

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrationSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &History{
		db: db,
		l:  l,
	}, nil
}

func (h *History) Close() error {
	err := h.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	return nil
}

func (h *History) SaveRun(run domain.SaveRun) error {
	tx, err := h.db.Beginx()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs (run_at, folder, searched, matched, moved, errors, dry_run) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunAt,
		run.Folder,
		run.Searched,
		run.Matched,
		run.Moved,
		run.Errors,
		run.DryRun,
	)
	if err != nil {
		return fmt.Errorf("could not save run: %w", err)
	}

	runId, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("could not determine run id: %w", err)
	}

	for _, m := range run.Mails {
		_, err = tx.Exec(
			`INSERT INTO moved_mails (run_id, uid, sender, subject, matched_name) VALUES (?, ?, ?, ?, ?)`,
			runId,
			m.Uid,
			m.Sender,
			m.Subject,
			m.MatchedName,
		)
		if err != nil {
			return fmt.Errorf("could not save moved mail: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("could not commit run: %w", err)
	}

	h.l.WithFields(logrus.Fields{"run": runId, "mails": len(run.Mails)}).Debug("Persisted run")
	return nil
}

func (h *History) RecentRuns(limit int) ([]*domain.CleaningRun, error) {
	dbRuns := []struct {
		Id       int64  `db:"id"`
		RunAt    string `db:"run_at"`
		Folder   string `db:"folder"`
		Searched int    `db:"searched"`
		Matched  int    `db:"matched"`
		Moved    int    `db:"moved"`
		Errors   int    `db:"errors"`
		DryRun   bool   `db:"dry_run"`
	}{}

	err := h.db.Select(
		&dbRuns,
		`SELECT id, datetime(run_at) AS run_at, folder, searched, matched, moved, errors, dry_run
		 FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	runs := []*domain.CleaningRun{}
	for _, r := range dbRuns {
		runAt, err := parseRunAt(r.RunAt)
		if err != nil {
			return nil, err
		}

		runs = append(
			runs,
			&domain.CleaningRun{
				Id:       r.Id,
				RunAt:    runAt,
				Folder:   r.Folder,
				Searched: r.Searched,
				Matched:  r.Matched,
				Moved:    r.Moved,
				Errors:   r.Errors,
				DryRun:   r.DryRun,
			},
		)
	}

	return runs, nil
}

// sqlite's datetime() renders timestamps as "YYYY-MM-DD HH:MM:SS" in UTC.
func parseRunAt(value string) (time.Time, error) {
	runAt, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse run timestamp: %w", err)
	}
	return runAt, nil
}
