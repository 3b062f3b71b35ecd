package push

import (
	"fmt"
	"strings"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"

	"quarterload/util"
)

// NewMessengerFromConfig creates a sender for the given messenger type
func NewMessengerFromConfig(typ string, other map[string]interface{}) (Sender, error) {
	switch strings.ToLower(typ) {
	case "shoutrrr":
		return NewShoutrrrFromConfig(other)
	}

	return nil, fmt.Errorf("unknown messenger type: %s", typ)
}

// Shoutrrr delivers messages using the shoutrrr notification library. A single
// service url selects transport and credentials, e.g. telegram://token@telegram.
type Shoutrrr struct {
	log *util.Logger
	app *router.ServiceRouter
}

// NewShoutrrrFromConfig creates a shoutrrr sender
func NewShoutrrrFromConfig(other map[string]interface{}) (*Shoutrrr, error) {
	var cc struct {
		URI string
	}

	if err := util.DecodeOther(other, &cc); err != nil {
		return nil, err
	}

	app, err := shoutrrr.CreateSender(cc.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid shoutrrr configuration: %w", err)
	}

	return &Shoutrrr{
		log: util.NewLogger("push"),
		app: app,
	}, nil
}

// Send implements the Sender interface
func (m *Shoutrrr) Send(title, msg string) {
	params := &types.Params{}
	params.SetTitle(title)

	for _, err := range m.app.Send(msg, params) {
		if err != nil {
			m.log.ERROR.Printf("send: %v", err)
		}
	}
}
