// SPDX-License-Identifier: GPL-3.0-or-later
package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderNameFilter_Match(t *testing.T) {
	tests := []struct {
		name    string
		targets []string
		sender  string
		matched string
		ok      bool
	}{
		{"exact substring", []string{"Banco Galicia"}, "Banco Galicia S.A.", "Banco Galicia", true},
		{"case insensitive", []string{"Claro Video"}, "CLARO VIDEO ARG", "Claro Video", true},
		{"case insensitive target", []string{"NETFLIX"}, "Netflix Argentina", "NETFLIX", true},
		{"no match", []string{"Banco Galicia", "Claro Video"}, "John Doe", "", false},
		{"empty target list", []string{}, "Banco Galicia S.A.", "", false},
		{"nil target list", nil, "anyone", "", false},
		{"empty sender", []string{"Banco Galicia"}, "", "", false},
		{"first of several wins", []string{"Banco", "Galicia"}, "Banco Galicia S.A.", "Banco", true},
		{"accented sender", []string{"josé"}, "José Pérez", "josé", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matched, ok := SenderNames(tc.targets).Match(tc.sender)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.matched, matched)
		})
	}
}

func TestSenderNameFilter_MatchOrderIndependent(t *testing.T) {
	senders := []string{"Banco Galicia S.A.", "John Doe", "CLARO VIDEO ARG", ""}
	forward := SenderNames([]string{"Banco Galicia", "Claro Video"})
	backward := SenderNames([]string{"Claro Video", "Banco Galicia"})

	for _, sender := range senders {
		_, forwardOk := forward.Match(sender)
		_, backwardOk := backward.Match(sender)
		assert.Equal(t, forwardOk, backwardOk, "order of targets changed the result for %q", sender)
	}
}

func TestSenderNameFilter_Description(t *testing.T) {
	f := SenderNames([]string{"Banco Galicia", "Claro Video"})
	assert.Equal(t, "senders containing: Banco Galicia, Claro Video", f.Description())
}
