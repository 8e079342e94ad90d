// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"fmt"
	"mime"
	stdmail "net/mail"
	"strings"

	"github.com/emersion/go-message/charset"
)

// MailHeaderInfos extracts the sender display name and the subject from a raw
// header block as returned by a HEADER.FIELDS fetch.
//
// The sender is the display-name phrase of the From header. When the header
// carries no phrase (a bare address), the address is returned; when it cannot
// be parsed as an address at all, the decoded header value is returned as-is.
func MailHeaderInfos(rawHeader []byte) (string, string, error) {
	msg, err := stdmail.ReadMessage(bytes.NewReader(rawHeader))
	if err != nil {
		return "", "", fmt.Errorf("could not parse mail headers: %w", err)
	}

	fromHeader := msg.Header.Get("From")
	if len(strings.TrimSpace(fromHeader)) == 0 {
		return "", "", fmt.Errorf("From header not found")
	}

	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := dec.DecodeHeader(subject); err == nil {
		subject = decoded
	}

	return senderDisplayName(fromHeader, dec), subject, nil
}

func senderDisplayName(fromHeader string, dec *mime.WordDecoder) string {
	parser := &stdmail.AddressParser{WordDecoder: dec}
	addr, err := parser.Parse(fromHeader)
	if err != nil {
		// Not a parseable name-addr, match against whatever is there.
		if decoded, decErr := dec.DecodeHeader(fromHeader); decErr == nil {
			return strings.TrimSpace(decoded)
		}
		return strings.TrimSpace(fromHeader)
	}

	if len(addr.Name) > 0 {
		return addr.Name
	}

	return addr.Address
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}
