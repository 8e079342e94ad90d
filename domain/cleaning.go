// SPDX-License-Identifier: GPL-3.0-or-later
package domain

// SenderMatcher decides whether a sender display name is one the user wants
// gone. Match returns the configured target that matched so logs and history
// can name it.
type SenderMatcher interface {
	Match(senderDisplayName string) (string, bool)
	Description() string
}

type CleaningResult struct {
	Folder   string
	Searched int
	Matched  int
	Moved    int
	Errors   int
	DryRun   bool
}
