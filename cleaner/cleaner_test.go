// SPDX-License-Identifier: GPL-3.0-or-later
package cleaner

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/cecuchetti/outlook-cleaner/domain"
	"github.com/cecuchetti/outlook-cleaner/filter"
	"github.com/cecuchetti/outlook-cleaner/log"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	log.InitLogging("error")
	os.Exit(m.Run())
}

type fakeConnector struct {
	selected     string
	selectErr    error
	notReady     error
	uids         []uint32
	senders      map[uint32]string
	failingMoves map[uint32]bool

	readyChecks int
	fetched     [][]uint32
	moved       map[string][]uint32
}

func (f *fakeConnector) Select(folder string) (uint32, error) {
	if f.selectErr != nil {
		return 0, f.selectErr
	}
	f.selected = folder
	return 123, nil
}

func (f *fakeConnector) ListUids() ([]uint32, error) {
	return f.uids, nil
}

func (f *fakeConnector) FetchSenders(uids []uint32) ([]*domain.ImapMail, error) {
	f.fetched = append(f.fetched, uids)

	mails := []*domain.ImapMail{}
	for _, uid := range uids {
		mails = append(
			mails,
			&domain.ImapMail{
				Uid:     uid,
				Sender:  f.senders[uid],
				Subject: fmt.Sprintf("subject-%d", uid),
			},
		)
	}
	return mails, nil
}

func (f *fakeConnector) MoveReady() (error, error) {
	f.readyChecks++
	return f.notReady, nil
}

func (f *fakeConnector) Move(uids []uint32, folder string) error {
	for _, uid := range uids {
		if f.failingMoves[uid] {
			return errors.New("simulated transient imap error")
		}
	}
	if f.moved == nil {
		f.moved = map[string][]uint32{}
	}
	f.moved[folder] = append(f.moved[folder], uids...)
	return nil
}

func (f *fakeConnector) Close() error {
	return nil
}

type fakeHistory struct {
	runs []domain.SaveRun
}

func (f *fakeHistory) Close() error { return nil }

func (f *fakeHistory) SaveRun(run domain.SaveRun) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeHistory) RecentRuns(limit int) ([]*domain.CleaningRun, error) {
	return nil, nil
}

func threeMailConnector() *fakeConnector {
	return &fakeConnector{
		uids: []uint32{1, 2, 3},
		senders: map[uint32]string{
			1: "Banco Galicia S.A.",
			2: "John Doe",
			3: "CLARO VIDEO ARG",
		},
	}
}

func targetRule() domain.SenderMatcher {
	return filter.SenderNames([]string{"Banco Galicia", "Claro Video"})
}

func TestNewCleaner(t *testing.T) {
	tests := []struct {
		name string
		cfgs []ConfigFunc
		err  string
	}{
		{"ok", []ConfigFunc{MoveTo("Deleted Items")}, ""},
		{"ok dry-run only", []ConfigFunc{DryRun()}, ""},
		{"empty folder", []ConfigFunc{MoveTo("")}, "error applying configuration: DeletedFolder cannot be empty"},
		{"live without destination", []ConfigFunc{}, "error applying configuration: a destination folder is required unless dry-run is enabled"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCleaner(nil, nil, nil, tc.cfgs...)
			if len(tc.err) == 0 {
				assert.NotNil(t, c)
				assert.NoError(t, err)
			} else {
				assert.Nil(t, c)
				assert.EqualError(t, err, tc.err)
			}
		})
	}
}

func TestCleaner_CleanLive(t *testing.T) {
	conn := threeMailConnector()
	history := &fakeHistory{}

	c, err := NewCleaner(history, conn, targetRule(), MoveTo("Deleted Items"))
	assert.NoError(t, err)

	result, err := c.Clean("INBOX")
	assert.NoError(t, err)

	assert.Equal(t, "INBOX", conn.selected)
	assert.Equal(t, 1, conn.readyChecks)
	assert.Equal(t, 3, result.Searched)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 2, result.Moved)
	assert.Equal(t, 0, result.Errors)
	assert.False(t, result.DryRun)
	assert.Equal(t, []uint32{1, 3}, conn.moved["Deleted Items"])

	if assert.Len(t, history.runs, 1) {
		run := history.runs[0]
		assert.Equal(t, 2, run.Moved)
		assert.Equal(t, []domain.MovedMail{
			{Uid: 1, Sender: "Banco Galicia S.A.", Subject: "subject-1", MatchedName: "Banco Galicia"},
			{Uid: 3, Sender: "CLARO VIDEO ARG", Subject: "subject-3", MatchedName: "Claro Video"},
		}, run.Mails)
	}
}

func TestCleaner_CleanDryRun(t *testing.T) {
	conn := threeMailConnector()
	history := &fakeHistory{}

	c, err := NewCleaner(history, conn, targetRule(), DryRun())
	assert.NoError(t, err)

	result, err := c.Clean("INBOX")
	assert.NoError(t, err)

	assert.Equal(t, 3, result.Searched)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 0, result.Moved)
	assert.Equal(t, 0, result.Errors)
	assert.True(t, result.DryRun)

	// Dry-run never mutates the mailbox, not even a readiness probe
	assert.Empty(t, conn.moved)
	assert.Equal(t, 0, conn.readyChecks)

	if assert.Len(t, history.runs, 1) {
		assert.True(t, history.runs[0].DryRun)
		assert.Empty(t, history.runs[0].Mails)
	}
}

func TestCleaner_CleanEmptyTargetList(t *testing.T) {
	conn := threeMailConnector()

	c, err := NewCleaner(nil, conn, filter.SenderNames(nil), MoveTo("Deleted Items"))
	assert.NoError(t, err)

	result, err := c.Clean("INBOX")
	assert.NoError(t, err)

	assert.Equal(t, 3, result.Searched)
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 0, result.Moved)
	assert.Empty(t, conn.moved)
}

func TestCleaner_CleanPartialMoveFailure(t *testing.T) {
	conn := threeMailConnector()
	conn.failingMoves = map[uint32]bool{1: true}

	c, err := NewCleaner(nil, conn, targetRule(), MoveTo("Deleted Items"))
	assert.NoError(t, err)

	result, err := c.Clean("INBOX")
	assert.NoError(t, err)

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Moved)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, []uint32{3}, conn.moved["Deleted Items"])
}

func TestCleaner_CleanEmptyFolder(t *testing.T) {
	conn := &fakeConnector{}
	history := &fakeHistory{}

	c, err := NewCleaner(history, conn, targetRule(), MoveTo("Deleted Items"))
	assert.NoError(t, err)

	result, err := c.Clean("INBOX")
	assert.NoError(t, err)

	assert.Equal(t, 0, result.Searched)
	assert.Empty(t, conn.fetched)
	assert.Len(t, history.runs, 1)
}

func TestCleaner_CleanSelectFails(t *testing.T) {
	conn := &fakeConnector{selectErr: errors.New("no such folder")}

	c, err := NewCleaner(nil, conn, targetRule(), MoveTo("Deleted Items"))
	assert.NoError(t, err)

	result, err := c.Clean("Nope")
	assert.Nil(t, result)
	assert.EqualError(t, err, "could not select folder Nope: no such folder")
}

func TestCleaner_CleanNotMoveReady(t *testing.T) {
	conn := threeMailConnector()
	conn.notReady = errors.New("previous items with delete flag set")

	c, err := NewCleaner(nil, conn, targetRule(), MoveTo("Deleted Items"))
	assert.NoError(t, err)

	result, err := c.Clean("INBOX")
	assert.Nil(t, result)
	assert.EqualError(t, err, "folder INBOX is not ready for mail moving: previous items with delete flag set")
}

func TestCleaner_CleanBatches(t *testing.T) {
	conn := &fakeConnector{senders: map[uint32]string{}}
	for i := 1; i <= BatchSize+10; i++ {
		conn.uids = append(conn.uids, uint32(i))
		conn.senders[uint32(i)] = "John Doe"
	}

	c, err := NewCleaner(nil, conn, targetRule(), DryRun())
	assert.NoError(t, err)

	result, err := c.Clean("INBOX")
	assert.NoError(t, err)

	assert.Equal(t, BatchSize+10, result.Searched)
	if assert.Len(t, conn.fetched, 2) {
		assert.Len(t, conn.fetched[0], BatchSize)
		assert.Len(t, conn.fetched[1], 10)
	}
}

func TestPartitionUids(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		size     int
		expected []int
	}{
		{"empty", 0, 50, []int{0}},
		{"single partial batch", 3, 50, []int{3}},
		{"exact batch", 50, 50, []int{50}},
		{"overflowing batch", 53, 50, []int{50, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			uids := []uint32{}
			for i := 0; i < tc.count; i++ {
				uids = append(uids, uint32(i))
			}

			batches := partitionUids(uids, tc.size)
			sizes := []int{}
			for _, b := range batches {
				sizes = append(sizes, len(b))
			}
			assert.Equal(t, tc.expected, sizes)
		})
	}
}
