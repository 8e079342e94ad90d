// SPDX-License-Identifier: GPL-3.0-or-later
package auth

import (
	"context"
	"fmt"

	"github.com/cecuchetti/outlook-cleaner/domain"
	"github.com/cecuchetti/outlook-cleaner/log"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
	"github.com/sirupsen/logrus"
)

// ImapScope grants IMAP access to the signed-in mailbox. offline_access is
// implied, msal requests it on its own.
const ImapScope = "https://outlook.office.com/IMAP.AccessAsUser.All"

type Authenticator struct {
	client public.Client

	email            string
	scopes           []string
	forceInteractive bool
	useDeviceCode    bool

	l *logrus.Logger
}

func NewAuthenticator(clientId, tenantId, email, cachePath string, forceInteractive, useDeviceCode bool) (*Authenticator, error) {
	authority := fmt.Sprintf("https://login.microsoftonline.com/%s", tenantId)

	client, err := public.New(
		clientId,
		public.WithAuthority(authority),
		public.WithCache(newFileCache(cachePath)),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create oauth2 public client: %w", err)
	}

	return &Authenticator{
		client:           client,
		email:            email,
		scopes:           []string{ImapScope},
		forceInteractive: forceInteractive,
		useDeviceCode:    useDeviceCode,
		l:                log.Logger(log.LOG_AUTH),
	}, nil
}

// AcquireToken tries a silent acquisition against the persisted cache first,
// refreshing transparently when the access token is stale. When that fails it
// runs the interactive flow, unless force_interactive_login is disabled, in
// which case the failure is surfaced as an authentication error.
func (a *Authenticator) AcquireToken(ctx context.Context) (string, error) {
	token, err := a.acquireSilent(ctx)
	if err == nil {
		return token, nil
	}
	a.l.WithField("error", err).Debug("Silent token acquisition failed")

	if !a.forceInteractive {
		return "", fmt.Errorf("%w: no usable cached token and interactive login is disabled: %v", domain.ErrAuthentication, err)
	}

	return a.AcquireTokenInteractive(ctx)
}

func (a *Authenticator) acquireSilent(ctx context.Context) (string, error) {
	accounts, err := a.client.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("could not list cached accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("no cached accounts")
	}

	account := accounts[0]
	for _, acc := range accounts {
		if acc.PreferredUsername == a.email {
			account = acc
			break
		}
	}

	result, err := a.client.AcquireTokenSilent(ctx, a.scopes, public.WithSilentAccount(account))
	if err != nil {
		return "", fmt.Errorf("could not acquire token silently: %w", err)
	}

	a.l.WithFields(logrus.Fields{"account": account.PreferredUsername, "expires": result.ExpiresOn}).Debug("Acquired token from cache")
	return result.AccessToken, nil
}

// AcquireTokenInteractive always prompts: a browser window by default, the
// device code flow on browserless hosts when configured. The resulting tokens
// are persisted to the cache before returning.
func (a *Authenticator) AcquireTokenInteractive(ctx context.Context) (string, error) {
	var result public.AuthResult
	var err error

	if a.useDeviceCode {
		deviceCode, dcErr := a.client.AcquireTokenByDeviceCode(ctx, a.scopes)
		if dcErr != nil {
			return "", fmt.Errorf("%w: could not start device code flow: %v", domain.ErrAuthentication, dcErr)
		}

		// The message contains the verification url and the code the user has
		// to enter there, it must reach the terminal verbatim.
		fmt.Println(deviceCode.Result.Message)

		result, err = deviceCode.AuthenticationResult(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: device code login failed: %v", domain.ErrAuthentication, err)
		}
	} else {
		a.l.Info("Opening browser window for OAuth2 login")
		result, err = a.client.AcquireTokenInteractive(ctx, a.scopes)
		if err != nil {
			return "", fmt.Errorf("%w: interactive login failed: %v", domain.ErrAuthentication, err)
		}
	}

	a.l.WithFields(logrus.Fields{"account": result.Account.PreferredUsername, "expires": result.ExpiresOn}).Info("Logged in")
	return result.AccessToken, nil
}
