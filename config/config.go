// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	DefaultTenant        = "consumers"
	DefaultImapServer    = "outlook.office365.com:993"
	DefaultMailbox       = "INBOX"
	DefaultDeletedFolder = "Deleted Items"
)

type OAuth2Settings struct {
	ClientId              string `json:"client_id"`
	TenantId              string `json:"tenant_id"`
	ForceInteractiveLogin bool   `json:"force_interactive_login"`
	UseDeviceCode         bool   `json:"use_device_code"`
}

type CleaningSettings struct {
	SenderNamesToSearch []string `json:"sender_names_to_search"`
	MoveToDeleted       bool     `json:"move_to_deleted"`
	DeletedFolder       string   `json:"deleted_folder"`
}

type ImapSettings struct {
	Server  string `json:"server"`
	Mailbox string `json:"mailbox"`
}

type Config struct {
	Email    string           `json:"email"`
	OAuth2   OAuth2Settings   `json:"oauth2"`
	Cleaning CleaningSettings `json:"cleaning"`
	Imap     ImapSettings     `json:"imap"`

	HistoryDatabase string  `json:"history_database"`
	Loglevel        *string `json:"loglevel"`
}

// ReadConfig loads the json configuration. Defaults are pre-filled before
// decoding so that absent keys keep them while explicit values, including
// explicit false and the empty history_database, win.
func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		OAuth2: OAuth2Settings{
			TenantId:              DefaultTenant,
			ForceInteractiveLogin: true,
		},
		Cleaning: CleaningSettings{
			MoveToDeleted: true,
			DeletedFolder: DefaultDeletedFolder,
		},
		Imap: ImapSettings{
			Server:  DefaultImapServer,
			Mailbox: DefaultMailbox,
		},
		HistoryDatabase: "cleaner.db",
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = json.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("could not parse config file: %w", err)
	}

	config.applyFallbacks()

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

// applyFallbacks restores defaults for optional string settings that were set
// to blank, so a `"tenant_id": ""` does not produce a broken authority url.
func (c *Config) applyFallbacks() {
	if len(strings.TrimSpace(c.OAuth2.TenantId)) == 0 {
		c.OAuth2.TenantId = DefaultTenant
	}
	if len(strings.TrimSpace(c.Imap.Server)) == 0 {
		c.Imap.Server = DefaultImapServer
	}
	if len(strings.TrimSpace(c.Imap.Mailbox)) == 0 {
		c.Imap.Mailbox = DefaultMailbox
	}
	if len(strings.TrimSpace(c.Cleaning.DeletedFolder)) == 0 {
		c.Cleaning.DeletedFolder = DefaultDeletedFolder
	}
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Email, "email must not be empty, set it to the mailbox address to clean"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.OAuth2.ClientId, "oauth2.client_id must not be empty, set it to the application id registered in Azure AD"); err != nil {
		return err
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
