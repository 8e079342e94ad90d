// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "errors"

// ErrAuthentication marks token acquisition failures and XOAUTH2 rejections so
// the entry point can tell them apart from mailbox errors: auth failures are
// fatal and worth a re-login hint, a failed single move is not.
var ErrAuthentication = errors.New("authentication failed")
