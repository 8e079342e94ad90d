// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import "github.com/emersion/go-sasl"

// xoauth2Client implements the XOAUTH2 SASL mechanism used by outlook.com:
// a single initial response of "user=<email>\x01auth=Bearer <token>\x01\x01",
// base64-encoded by the transport.
type xoauth2Client struct {
	username string
	token    string
}

func NewXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next is only reached when the server rejects the token and sends an error
// challenge; answering with an empty response makes it finish with its
// tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
