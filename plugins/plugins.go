// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package plugins

import (
	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/plugins/admin"
	"github.com/velour/catqq/plugins/ban"
	"github.com/velour/catqq/plugins/basic"
	"github.com/velour/catqq/plugins/census"
	"github.com/velour/catqq/plugins/help"
)

// Catalog maps plugin types, as named in the config file, to their factories
var Catalog = map[string]bot.Factory{
	"admin":  admin.New,
	"ban":    ban.New,
	"basic":  basic.New,
	"census": census.New,
	"help":   help.New,
}
