package main

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// incomingURLScheme is the deep link scheme the signer handles.
const incomingURLScheme = "manta"

// incomingURL is a parsed manta:// deep link.
type incomingURL struct {
	Action string
	Params url.Values
}

// parseIncomingURL parses a manta:// link.  The action is the link's path,
// or its host for links such as manta://show.  Only the show action is
// supported.
func parseIncomingURL(urlStr string) (*incomingURL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid url")
	}
	if u.Scheme != incomingURLScheme {
		return nil, errors.Errorf("not a %s:// url", incomingURLScheme)
	}

	action := strings.Trim(u.Path, "/")
	if action == "" {
		action = u.Host
	}
	in := &incomingURL{
		Action: action,
		Params: u.Query(),
	}
	switch in.Action {
	case "show":
	default:
		return nil, errors.Errorf("unsupported action %q", in.Action)
	}
	return in, nil
}
