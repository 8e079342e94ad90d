// SPDX-License-Identifier: GPL-3.0-or-later
package filter

import (
	"fmt"
	"strings"
)

// SenderNameFilter matches a message when any of the configured target names
// appears, case-insensitively, as a substring of the sender display name.
// An empty target list matches nothing. The filter only ever sees display
// names, never sender addresses.
type SenderNameFilter struct {
	names  []string
	folded []string
}

func SenderNames(names []string) *SenderNameFilter {
	folded := make([]string, len(names))
	for i, n := range names {
		folded[i] = strings.ToUpper(n)
	}

	return &SenderNameFilter{
		names:  names,
		folded: folded,
	}
}

func (f *SenderNameFilter) Match(senderDisplayName string) (string, bool) {
	sender := strings.ToUpper(senderDisplayName)
	for i, folded := range f.folded {
		if strings.Contains(sender, folded) {
			return f.names[i], true
		}
	}

	return "", false
}

func (f *SenderNameFilter) Description() string {
	return fmt.Sprintf("senders containing: %s", strings.Join(f.names, ", "))
}
