// SPDX-License-Identifier: GPL-3.0-or-later
package cleaner

import "fmt"

type ConfigFunc func(c *configuration) error

func DryRun() ConfigFunc {
	return func(c *configuration) error {
		c.DryRun = true

		return nil
	}
}

func MoveTo(deletedFolder string) ConfigFunc {
	return func(c *configuration) error {
		if len(deletedFolder) == 0 {
			return fmt.Errorf("DeletedFolder cannot be empty")
		}

		c.DeletedFolder = deletedFolder
		return nil
	}
}

type configuration struct {
	DryRun bool

	DeletedFolder string
}
